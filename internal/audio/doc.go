// Package audio provides notification sound playback.
// It uses the beep library to play WAV, OGG, and MP3 audio files with
// volume control, themed sound lookup, and per-urgency fallbacks.
package audio
