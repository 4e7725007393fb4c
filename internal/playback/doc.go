// Package playback drives text through synthesis to the audio device.
//
// An Engine holds what every Listen control shares: the chunker, the
// synthesis cache, the arbiter that keeps a single session audible, and the
// output device. Each control owns a Session built by the Engine. A Session
// splits its text once, plays chunk 0 as soon as it is synthesized and
// prefetches the following chunks in the background.
package playback
