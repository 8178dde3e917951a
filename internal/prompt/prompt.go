// Package prompt collects an extraction request from a terminal user.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"streetclip/internal/geometry"
	"streetclip/internal/models"

	"github.com/peterh/liner"
)

// ErrAborted is returned when the user closes the input (Ctrl-D or Ctrl-C).
var ErrAborted = errors.New("prompt: aborted")

const (
	addressPrompt = "Enter New York City address (e.g. 350 5th Ave, New York, NY 10118): "
	radiusPrompt  = "Enter search radius (miles): "
	kindPrompt    = "Select data type (1: Centerline, 2: Sidewalk): "
	formatPrompt  = "Select output format (1: HTML map, 2: SVG file, 3: Both): "
	exportPrompt  = "Enter export file base name or path (leave blank for default): "
)

// LineReader reads one line of input after showing a prompt. *liner.State
// satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Session asks questions on a LineReader and reports problems on out.
type Session struct {
	in  LineReader
	out io.Writer
}

// New returns a Session reading from in and writing messages to out.
func New(in LineReader, out io.Writer) *Session {
	return &Session{in: in, out: out}
}

// Terminal opens a liner backed Session. Close the returned state when done.
func Terminal(out io.Writer) (*Session, *liner.State) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return New(line, out), line
}

// Request asks for every field of an extraction request, repeating a
// question until its answer is usable.
func (s *Session) Request() (models.ExtractRequest, error) {
	var (
		req models.ExtractRequest
		err error
	)

	req.Address, err = s.ask(addressPrompt, func(v string) error {
		if v == "" {
			return errors.New("address cannot be empty")
		}
		return nil
	})
	if err != nil {
		return req, err
	}

	radius, err := s.ask(radiusPrompt, func(v string) error {
		miles, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", v)
		}
		_, err = geometry.MilesToMeters(miles)
		return err
	})
	if err != nil {
		return req, err
	}
	req.RadiusMiles, _ = strconv.ParseFloat(radius, 64)

	kind, err := s.ask(kindPrompt, func(v string) error {
		_, err := models.ParseDataKind(v)
		return err
	})
	if err != nil {
		return req, err
	}
	k, _ := models.ParseDataKind(kind)
	req.Kinds = []models.DataKind{k}

	format, err := s.ask(formatPrompt, func(v string) error {
		f, err := models.ParseOutputFormat(v)
		if err == nil && f == models.FormatGeoJSON {
			return fmt.Errorf("unknown output format %q", v)
		}
		return err
	})
	if err != nil {
		return req, err
	}
	req.Format, _ = models.ParseOutputFormat(format)

	req.ExportPath, err = s.ask(exportPrompt, nil)
	return req, err
}

// Confirm asks a yes/no question. Anything but y or yes counts as no.
func (s *Session) Confirm(question string) (bool, error) {
	answer, err := s.ask(question+" (y/n): ", nil)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (s *Session) ask(prompt string, check func(string) error) (string, error) {
	for {
		line, err := s.in.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return "", ErrAborted
			}
			return "", fmt.Errorf("prompt: %w", err)
		}
		line = strings.TrimSpace(line)
		if check == nil {
			return line, nil
		}
		if err := check(line); err != nil {
			fmt.Fprintf(s.out, "Invalid input: %v\n", err)
			continue
		}
		if line != "" {
			s.in.AppendHistory(line)
		}
		return line, nil
	}
}
