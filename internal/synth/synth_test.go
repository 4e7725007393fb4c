package synth

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/listen/internal/audio"
	"github.com/dgnsrekt/listen/internal/config"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"plain", "Hello world.", nil},
		{"empty", "", ErrEmptyText},
		{"blank", " \n\t ", ErrEmptyText},
		{"at limit", strings.Repeat("a", MaxTextLength), nil},
		{"over limit", strings.Repeat("a", MaxTextLength+1), ErrTextTooLong},
		{"multibyte at limit", strings.Repeat("é", MaxTextLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateText(tt.text)
			if !errors.Is(err, tt.want) {
				t.Errorf("validateText() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := &Error{Backend: "edge", Op: "decode", Err: ErrNoAudio}
	if !errors.Is(err, ErrNoAudio) {
		t.Error("Error should unwrap to its cause")
	}
	if got, want := err.Error(), "edge: decode: backend returned no audio"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNew(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default() error = %v", err)
	}
	format := audio.DefaultFormat()

	tests := []struct {
		engine     string
		wantName   string
		wantFormat audio.Format
		wantErr    error
	}{
		{"http", "http", format, nil},
		{"edge", "edge", format, nil},
		{"piper", "piper", audio.Format{SampleRate: 22050, Channels: 1, BitDepth: 16}, nil},
		{"mock", "mock", format, nil},
		{"festival", "", audio.Format{}, ErrUnknownEngine},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			sc := cfg.Synth
			sc.Engine = tt.engine
			s, err := New(sc, format, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if s.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.wantName)
			}
			if s.Format() != tt.wantFormat {
				t.Errorf("Format() = %v, want %v", s.Format(), tt.wantFormat)
			}
		})
	}
}
