// Package interactive provides terminal prompts for choosing what to run.
package interactive

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

const exitChoice = "Exit"

var (
	// ErrExit is returned when the user chooses to exit
	ErrExit = errors.New("exit")
	// ErrInvalidSelection is returned when an invalid menu option is selected
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrNothingSelected is returned when no scenario was picked
	ErrNothingSelected = errors.New("no scenarios selected")
)

// MenuOption represents a menu item with its associated action
type MenuOption struct {
	Name        string
	Description string
	Action      func() error
}

// Prompter asks the user questions.
type Prompter interface {
	Select(message string, options []string) (string, error)
	MultiSelect(message string, options, defaults []string) ([]string, error)
	Confirm(message string, def bool) (bool, error)
}

// SurveyPrompter prompts on the terminal.
type SurveyPrompter struct{}

func (SurveyPrompter) Select(message string, options []string) (string, error) {
	var selected string
	prompt := &survey.Select{
		Message:  message,
		Options:  options,
		PageSize: 15,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", translate(err)
	}

	return selected, nil
}

func (SurveyPrompter) MultiSelect(message string, options, defaults []string) ([]string, error) {
	var selected []string
	prompt := &survey.MultiSelect{
		Message:  message,
		Options:  options,
		Default:  defaults,
		PageSize: 15,
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return nil, translate(err)
	}

	return selected, nil
}

func (SurveyPrompter) Confirm(message string, def bool) (bool, error) {
	confirmed := def
	prompt := &survey.Confirm{
		Message: message,
		Default: def,
	}

	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, translate(err)
	}

	return confirmed, nil
}

func translate(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrExit
	}
	return err
}

// ShowMenu displays options and runs the selected action.
func ShowMenu(p Prompter, message string, options []MenuOption) error {
	choices := make([]string, 0, len(options)+1)
	optionMap := make(map[string]MenuOption, len(options))

	for _, opt := range options {
		choice := fmt.Sprintf("%s - %s", opt.Name, opt.Description)
		choices = append(choices, choice)
		optionMap[choice] = opt
	}

	choices = append(choices, exitChoice)

	selected, err := p.Select(message, choices)
	if err != nil {
		return ErrExit
	}

	if selected == exitChoice {
		return ErrExit
	}

	if option, ok := optionMap[selected]; ok {
		return option.Action()
	}

	return ErrInvalidSelection
}

// PickScenarios lets the user tick scenarios, all selected by default. The
// result keeps suite order.
func PickScenarios(p Prompter, names []string) ([]string, error) {
	selected, err := p.MultiSelect("Which scenarios should run?", names, names)
	if err != nil {
		return nil, err
	}

	picked := make(map[string]bool, len(selected))
	for _, s := range selected {
		picked[s] = true
	}

	ordered := make([]string, 0, len(selected))
	for _, n := range names {
		if picked[n] {
			ordered = append(ordered, n)
		}
	}

	if len(ordered) == 0 {
		return nil, ErrNothingSelected
	}

	return ordered, nil
}

// PauseForEnter waits for the user to press Enter
func PauseForEnter() {
	fmt.Println("\nPress Enter to continue...")
	_, _ = fmt.Scanln()
}
