package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

// DefaultPlayer is the command that receives raw PCM on stdin.
const DefaultPlayer = "aplay"

const chunkFrames = 2048

// WAVDevice plays <Dir>/<sound>.wav by decoding it and piping PCM into an
// aplay process, one process per sound.
type WAVDevice struct {
	Dir    string
	Player string
}

// NewWAVDevice returns a device reading sounds from dir.
func NewWAVDevice(dir, player string) *WAVDevice {
	if player == "" {
		player = DefaultPlayer
	}
	return &WAVDevice{Dir: dir, Player: player}
}

type wavHandle struct {
	sound string
	f     *os.File
	dec   *wav.Decoder
	buf   *goaudio.IntBuffer
	out   []byte
	width int

	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  bool
}

func (h *wavHandle) Sound() string { return h.sound }

// Open decodes the WAV header and starts the player process.
func (d *WAVDevice) Open(sound string) (Handle, error) {
	path := filepath.Join(d.Dir, sound+".wav")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, ErrSoundNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: not a valid wav file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: seek to pcm: %w", path, err)
	}

	format, width, err := pcmFormat(int(dec.BitDepth))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cmd := exec.Command(d.Player, "-q", "-t", "raw",
		"-f", format,
		"-r", strconv.Itoa(int(dec.SampleRate)),
		"-c", strconv.Itoa(int(dec.NumChans)))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		f.Close()
		return nil, fmt.Errorf("start %s: %w", d.Player, err)
	}

	n := chunkFrames * int(dec.NumChans)
	return &wavHandle{
		sound: sound,
		f:     f,
		dec:   dec,
		buf: &goaudio.IntBuffer{
			Format:         dec.Format(),
			Data:           make([]int, n),
			SourceBitDepth: int(dec.BitDepth),
		},
		out:   make([]byte, 0, n*width),
		width: width,
		cmd:   cmd,
		stdin: stdin,
	}, nil
}

// DecodeStep writes one chunk of PCM to the player.
func (d *WAVDevice) DecodeStep(h Handle) (bool, error) {
	wh, ok := h.(*wavHandle)
	if !ok {
		return false, errors.New("foreign handle")
	}
	if wh.done {
		return false, nil
	}

	n, err := wh.dec.PCMBuffer(wh.buf)
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", wh.sound, err)
	}
	if n == 0 {
		// Let the player drain what it already has.
		wh.done = true
		wh.stdin.Close()
		if err := wh.cmd.Wait(); err != nil {
			return false, fmt.Errorf("%s: %w", d.Player, err)
		}
		return false, nil
	}

	wh.out = encodeLE(wh.out[:0], wh.buf.Data[:n], wh.width)
	if _, err := wh.stdin.Write(wh.out); err != nil {
		return false, fmt.Errorf("write %s: %w", wh.sound, err)
	}
	return true, nil
}

// Stop kills the player if it is still running and closes the file.
func (d *WAVDevice) Stop(h Handle) {
	wh, ok := h.(*wavHandle)
	if !ok {
		return
	}
	if !wh.done {
		wh.done = true
		wh.stdin.Close()
		if wh.cmd.Process != nil {
			_ = wh.cmd.Process.Kill()
		}
		_ = wh.cmd.Wait()
	}
	wh.f.Close()
}

// Reinit checks the player is still available. Each sound gets a fresh
// process, so there is no device state to reset.
func (d *WAVDevice) Reinit() error {
	if _, err := exec.LookPath(d.Player); err != nil {
		logrus.WithField("player", d.Player).Debug("audio player not on PATH")
		return fmt.Errorf("find %s: %w", d.Player, err)
	}
	return nil
}

func pcmFormat(bitDepth int) (string, int, error) {
	switch bitDepth {
	case 8:
		return "U8", 1, nil
	case 16:
		return "S16_LE", 2, nil
	case 24:
		return "S24_3LE", 3, nil
	case 32:
		return "S32_LE", 4, nil
	default:
		return "", 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
}

func encodeLE(dst []byte, samples []int, width int) []byte {
	for _, s := range samples {
		v := uint32(int32(s))
		for i := 0; i < width; i++ {
			dst = append(dst, byte(v>>(8*i)))
		}
	}
	return dst
}
