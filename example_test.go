package agrobot_test

import (
	"context"
	"fmt"

	"github.com/aretw0/agrobot"
	"github.com/aretw0/agrobot/pkg/domain"
)

type cannedModel string

func (c cannedModel) Generate(ctx context.Context, contents []domain.Message) (domain.Response, error) {
	return domain.Response{HasText: true, Text: string(c)}, nil
}

// ExampleBot_Respond shows a Bot wired to a fixed model answer.
// Real deployments pass a gemini.Client instead.
func ExampleBot_Respond() {
	bot := agrobot.New(cannedModel("Add compost |||STEP||| Rotate crops"))
	ctx := context.Background()

	fmt.Println(bot.Respond(ctx, agrobot.Request{Text: "How do I improve soil fertility?"}))
	fmt.Println(bot.Respond(ctx, agrobot.Request{Text: "What's the capital of France?"}))
	// Output:
	// Add compost |||STEP||| Rotate crops
	// Please ask only agricultural-related queries 🌾
}
