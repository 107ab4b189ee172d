package voice

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

const speakTimeout = 30 * time.Second

// CommandSpeaker speaks through an external text-to-speech program such as
// espeak-ng or say. The text is passed as the last argument.
type CommandSpeaker struct {
	Path string
	Args []string
}

func NewCommandSpeaker(path string, args ...string) *CommandSpeaker {
	return &CommandSpeaker{Path: path, Args: args}
}

func (c *CommandSpeaker) Speak(u Utterance, report func(Utterance, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
		defer cancel()

		args := append(append([]string{}, c.Args...), u.Text)
		out, err := exec.CommandContext(ctx, c.Path, args...).CombinedOutput()
		if err != nil {
			err = fmt.Errorf("%s: %w: %s", c.Path, err, out)
		}
		report(u, err)
	}()
}

// TerminalBeeper rings the terminal bell.
type TerminalBeeper struct {
	Out io.Writer
}

func (b TerminalBeeper) Beep() error {
	out := b.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := out.Write([]byte{'\a'})
	return err
}
