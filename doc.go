/*
Package agrobot is an agriculture-only chat assistant backed by a hosted
multimodal model.

A Bot accepts a question with an optional photo, keeps text-only requests
inside the agriculture domain with a keyword gate, adds a bounded window of
the conversation so far, asks the model and records the turn.

# Pipeline

	request -> normalize -> topic gate -> assemble context -> model -> history -> reply

Every failure is a typed error (see pkg/domain). Transports call Respond,
which converts errors into the user-facing text, so an off-topic question
yields exactly domain.RefusalMessage and a provider failure yields
"⚠️ Error from model: <detail>".

# Usage

	gen, err := gemini.New(os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		log.Fatal(err)
	}

	bot := agrobot.New(gen)
	reply := bot.Respond(ctx, agrobot.Request{Text: "How do I improve soil fertility?"})

# State

Conversation history is owned by a history.Manager passed to New with
WithHistory. By default a single in-memory conversation is shared by every
caller and turns are serialized; pkg/history documents the session scope,
the unsynchronized mode and the Redis backend.
*/
package agrobot
