package system

import (
	"fmt"

	"github.com/julianstephens/geko/internal/cli"
	"github.com/julianstephens/geko/internal/feedback"
)

type FeedbackCmd struct {
	Status  FeedbackStatusCmd  `cmd:"" help:"Show whether the feedback prompt was presented." default:"1"`
	Dismiss FeedbackDismissCmd `cmd:"" help:"Mark the feedback prompt as presented."`
	Reset   FeedbackResetCmd   `cmd:"" help:"Forget that the feedback prompt was presented."`
	Force   FeedbackForceCmd   `cmd:"" help:"Show the feedback prompt now without recording it."`
}

type FeedbackStatusCmd struct{}

func (c *FeedbackStatusCmd) Run(ctx *cli.Context) error {
	presented, err := ctx.Feedback.Presented()
	if err != nil {
		return err
	}

	habits, err := ctx.Tracker.AllHabits()
	if err != nil {
		return err
	}
	today := ctx.Tracker.Today()

	fmt.Printf("Prompt presented:   %t\n", presented)
	fmt.Printf("Completed today:    %d\n", feedback.CountCompleted(habits, today))
	fmt.Printf("Would prompt now:   %t\n", feedback.ShouldPrompt(habits, today, presented))
	return nil
}

type FeedbackDismissCmd struct{}

func (c *FeedbackDismissCmd) Run(ctx *cli.Context) error {
	if err := ctx.Feedback.MarkPresented(); err != nil {
		return err
	}
	fmt.Println("Feedback prompt dismissed.")
	return nil
}

type FeedbackResetCmd struct{}

func (c *FeedbackResetCmd) Run(ctx *cli.Context) error {
	if err := ctx.Feedback.Reset(); err != nil {
		return err
	}
	fmt.Println("Feedback prompt state reset.")
	return nil
}

type FeedbackForceCmd struct{}

func (c *FeedbackForceCmd) Run(ctx *cli.Context) error {
	ctx.Feedback.ForceShow()
	fmt.Println(cli.PromptStyle.Render(cli.FeedbackMessage))
	return nil
}
