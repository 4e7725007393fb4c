// Package audio is the output side of the playback engine. It describes raw
// PCM clips, opens them on an output device at a given offset and reports the
// position and completion of the resulting stream.
//
// A process owns a single Device. The oto/v3 implementation drives the system
// sound card; MockDevice is used by tests and by headless runs.
package audio
