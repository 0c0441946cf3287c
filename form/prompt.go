package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

// Asker is the interactive surface a form is filled through.
type Asker interface {
	// Input asks for text; validate is called on every answer and a non-nil
	// result makes the prompt ask again.
	Input(message, help, def string, validate func(string) error) (string, error)
	Confirm(message string, def bool) (bool, error)
	Select(message string, options []string, def string) (string, error)
}

// SurveyAsker asks on the terminal.
type SurveyAsker struct {
	Opts []survey.AskOpt
}

func (a SurveyAsker) Input(message, help, def string, validate func(string) error) (string, error) {
	var answer string
	prompt := &survey.Input{Message: message, Help: help, Default: def}
	opts := append([]survey.AskOpt{}, a.Opts...)
	if validate != nil {
		opts = append(opts, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			return validate(s)
		}))
	}
	err := survey.AskOne(prompt, &answer, opts...)
	return answer, err
}

func (a SurveyAsker) Confirm(message string, def bool) (bool, error) {
	var answer bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &answer, a.Opts...)
	return answer, err
}

func (a SurveyAsker) Select(message string, options []string, def string) (string, error) {
	var answer string
	prompt := &survey.Select{Message: message, Options: options}
	if def != "" {
		prompt.Default = def
	}
	err := survey.AskOne(prompt, &answer, a.Opts...)
	return answer, err
}

// Fill walks the control tree and asks for every value. Current values are
// offered as defaults, so a prefilled form only needs confirming.
func Fill(c *Control, a Asker) error {
	name := c.Path
	if name == "" {
		name = c.Label
	}

	switch c.Kind {
	case KindBool:
		b, err := a.Confirm(fmt.Sprintf("%s (bool)", name), c.Bool)
		if err != nil {
			return err
		}
		c.Bool = b
		return nil

	case KindOption:
		present, err := a.Confirm(fmt.Sprintf("Set %s? (%s)", name, c.Type), c.Present)
		if err != nil {
			return err
		}
		if err := c.SetPresent(present); err != nil {
			return err
		}
		if !present {
			return nil
		}
		return Fill(c.Inner, a)

	case KindVec:
		answer, err := a.Input(fmt.Sprintf("Number of items in %s (%s)", name, c.Type), "", strconv.Itoa(len(c.Items)), validateCount)
		if err != nil {
			return err
		}
		n, _ := strconv.Atoi(strings.TrimSpace(answer))
		if err := c.Resize(n); err != nil {
			return err
		}
		return fillAll(c.Items, a)

	case KindArray:
		return fillAll(c.Items, a)

	case KindStruct:
		return fillAll(c.Fields, a)

	case KindEnum:
		def := c.SelectedVariant()
		choice, err := a.Select(fmt.Sprintf("%s (%s)", name, c.Enum.Name), c.VariantNames(), def)
		if err != nil {
			return err
		}
		if choice != def || c.Selected < 0 {
			if err := c.SelectVariant(choice); err != nil {
				return err
			}
		}
		return fillAll(c.Variant, a)
	}

	help := strings.Join(c.Docs, "\n")
	validate := func(s string) error {
		old := c.Text
		err := c.SetText(s)
		c.Text = old
		var ve *ValidationError
		if errors.As(err, &ve) {
			return errors.New(ve.Msg)
		}
		return err
	}
	answer, err := a.Input(fmt.Sprintf("%s (%s)", name, c.Primitive), help, c.Text, validate)
	if err != nil {
		return err
	}
	return c.SetText(answer)
}

func fillAll(controls []*Control, a Asker) error {
	for _, child := range controls {
		if err := Fill(child, a); err != nil {
			return err
		}
	}
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return errors.New("enter a non-negative whole number")
	}
	return nil
}

// FillInstruction asks for every argument, then every account not already
// filled by auto-resolution.
func FillInstruction(f *InstructionForm, a Asker) error {
	if err := FillArgs(f, a); err != nil {
		return err
	}
	for _, acc := range f.Accounts {
		if acc.Source != "" && acc.Source != "user" {
			continue
		}
		if err := FillAccount(f, acc, a); err != nil {
			return err
		}
	}
	return nil
}

// FillArgs asks for every argument.
func FillArgs(f *InstructionForm, a Asker) error {
	return fillAll(f.Args, a)
}

// FillAccount asks for one account address.
func FillAccount(f *InstructionForm, acc *AccountInput, a Asker) error {
	var tags []string
	if acc.Spec.IsSigner {
		tags = append(tags, "signer")
	}
	if acc.Spec.IsMut {
		tags = append(tags, "writable")
	}
	if acc.Spec.IsOptional {
		tags = append(tags, "optional, empty to skip")
	}
	msg := "Account " + acc.Spec.Name
	if len(tags) > 0 {
		msg += " (" + strings.Join(tags, ", ") + ")"
	}
	answer, err := a.Input(msg, strings.Join(acc.Spec.Docs, "\n"), acc.Text, func(s string) error {
		probe := AccountInput{Spec: acc.Spec, Text: s}
		if _, _, err := probe.Key(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return errors.New(ve.Msg)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return f.SetAccount(acc.Spec.Name, answer)
}
