package console

import (
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

var yesNoConstraints = []string{"y", "n"}

// Shell is a line prompt with history and command completion. While it is
// open the console output goes through it so events don't garble the input
// line.
type Shell struct {
	rl     *readline.Instance
	prompt string
}

func NewShell(prompt string, commands ...string) (*Shell, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, c := range commands {
		items = append(items, readline.PcItem(c))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, err
	}
	SetOutput(rl.Stdout(), rl.Stderr())
	return &Shell{rl: rl, prompt: prompt}, nil
}

func (s *Shell) Readline() (string, error) {
	return s.rl.Readline()
}

func (s *Shell) YesOrNo(question string) (string, error) {
	return s.Prompt(question, yesNoConstraints...)
}

// Prompt asks a question constrained to the given answers, the first one
// being the default.
func (s *Shell) Prompt(question string, constraints ...string) (string, error) {
	defer s.rl.SetPrompt(s.prompt)
	if len(constraints) == 0 {
		s.rl.SetPrompt(question)
		return s.rl.Readline()
	}
	def := strings.ToUpper(constraints[0])
	var prompt strings.Builder
	prompt.WriteString(question)
	prompt.WriteString(" [")
	prompt.WriteString(def)
	for i := 1; i < len(constraints); i++ {
		prompt.WriteString("/")
		prompt.WriteString(constraints[i])
	}
	prompt.WriteString("]:")
	s.rl.SetPrompt(prompt.String())
	response, err := s.rl.Readline()
	if err != nil {
		return "", err
	}
	// return default on no input
	if response == "" {
		return constraints[0], nil
	}
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return normalized, nil
		}
	}
	// no constraint matched, return default
	return constraints[0], nil
}

func (s *Shell) Close() error {
	SetOutput(stdout, stderr)
	return s.rl.Close()
}
