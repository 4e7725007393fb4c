// Package chunker turns article text into the ordered list of spoken chunks
// a playback session walks through.
//
// The first chunk is kept to a single short sentence so the first synthesis
// call returns quickly; later chunks group sentences up to a word budget so
// the synthesizer is not called once per sentence.
package chunker
