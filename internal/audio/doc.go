// Package audio decodes synthesis results and plays them through oto/v3.
// MP3 responses are decoded with go-mp3; LINEAR16 responses may carry a
// WAV header or be bare samples. Everything is converted to 16-bit stereo
// before it reaches the device.
package audio
