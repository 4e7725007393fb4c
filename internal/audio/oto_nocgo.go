//go:build !cgo

package audio

import "time"

// OtoDevice is unavailable in builds without cgo.
type OtoDevice struct{}

// NewOtoDevice always fails in builds without cgo.
func NewOtoDevice(Format, float64) (*OtoDevice, error) {
	return nil, ErrNoAudioDevice
}

func (d *OtoDevice) Format() Format { return Format{} }

func (d *OtoDevice) Play(Clip, time.Duration) (Stream, error) { return nil, ErrNoAudioDevice }

func (d *OtoDevice) Close() error { return nil }
