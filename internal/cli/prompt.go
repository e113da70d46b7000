package cli

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/internal/client"
)

// Prompter asks the person at the terminal for the booking details.
type Prompter interface {
	SelectSlot(options []bookings.SlotView) (int64, error)
	ClientInfo(info *client.ClientInfo) error
	Confirm(title, description string) (bool, error)
}

// HuhPrompter renders the prompts as huh forms.
type HuhPrompter struct{}

func (HuhPrompter) SelectSlot(options []bookings.SlotView) (int64, error) {
	opts := make([]huh.Option[int64], 0, len(options))
	for _, s := range options {
		opts = append(opts, huh.NewOption(s.FullTime, s.Timestamp))
	}
	var ts int64
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int64]().
				Title("Choose a time").
				Options(opts...).
				Height(12).
				Value(&ts),
		),
	).WithTheme(huh.ThemeDracula()).Run()
	return ts, err
}

func (HuhPrompter) ClientInfo(info *client.ClientInfo) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Full name").
				Value(&info.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Email").
				Value(&info.Email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Phone").
				Description("Optional").
				Value(&info.Phone),
		),
	).WithTheme(huh.ThemeDracula()).Run()
}

func (HuhPrompter) Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&ok),
		),
	).WithTheme(huh.ThemeDracula()).Run()
	return ok, err
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}
