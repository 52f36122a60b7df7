// Package storyrag embeds the story question-answering pipeline in a Go
// program, without the HTTP server.
//
// A Client owns an in-memory vector index partitioned by session. Documents
// are extracted, chunked, embedded and indexed into a session; questions are
// answered from that session's chunks only.
//
//	client, _ := storyrag.New(
//	    storyrag.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	    storyrag.WithChunking(500, 50),
//	)
//	defer client.Close()
//
//	sess, _ := client.CreateSession(ctx)
//	_, _ = client.IngestText(ctx, sess.ID, "Chapter 1", chapterText)
//	ans, _ := client.Ask(ctx, sess.ID, "Who found the key?")
//	fmt.Println(ans.Text, ans.ChunkIDs)
//
// Bring your own providers with WithEmbedder and WithCompleter.
package storyrag
