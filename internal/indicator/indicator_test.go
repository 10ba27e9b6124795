package indicator

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/Car-Role/Whisper-dictation/internal/logging"
)

type countIndicator struct{ shows, hides int }

func (c *countIndicator) Show() { c.shows++ }
func (c *countIndicator) Hide() { c.hides++ }

func TestMultiFansOut(t *testing.T) {
	a, b := &countIndicator{}, &countIndicator{}
	m := Multi{a, b}
	m.Show()
	m.Hide()
	m.Hide()
	if a.shows != 1 || b.shows != 1 || a.hides != 2 || b.hides != 2 {
		t.Fatalf("a=%+v b=%+v", a, b)
	}
}

func TestNotifierSendsMessages(t *testing.T) {
	got := make(chan string, 2)
	n := NewNotifier(func(msg string) error {
		got <- msg
		return errors.New("no notification daemon")
	}, logging.Discard())

	n.Show()
	select {
	case msg := <-got:
		if msg != "Recording started" {
			t.Fatalf("Show sent %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Show sent nothing")
	}
	n.Hide()
	select {
	case msg := <-got:
		if msg != "Recording finished" {
			t.Fatalf("Hide sent %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Hide sent nothing")
	}
}

func TestWrapICOHeader(t *testing.T) {
	img := []byte("\x89PNG fake payload")
	ico := wrapICO(img, 32)
	le := binary.LittleEndian
	if le.Uint16(ico[0:]) != 0 || le.Uint16(ico[2:]) != 1 || le.Uint16(ico[4:]) != 1 {
		t.Fatalf("bad ICONDIR % x", ico[:6])
	}
	if ico[6] != 32 || ico[7] != 32 {
		t.Fatalf("bad dimensions %d x %d", ico[6], ico[7])
	}
	if le.Uint32(ico[14:]) != uint32(len(img)) || le.Uint32(ico[18:]) != 22 {
		t.Fatalf("bad size/offset % x", ico[14:22])
	}
	if !bytes.Equal(ico[22:], img) {
		t.Fatal("payload not appended")
	}
}

func TestDotIconDecodes(t *testing.T) {
	data := dotIcon(recordingColor)
	if len(data) == 0 {
		t.Fatal("empty icon")
	}
	if bytes.HasPrefix(data, []byte{0, 0, 1, 0}) {
		data = data[22:]
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if img.Bounds().Dx() != iconSize {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatal("corner should be transparent")
	}
	if r, _, _, _ := img.At(iconSize/2, iconSize/2).RGBA(); r>>8 != uint32(recordingColor.R) {
		t.Fatalf("center red = %d", r>>8)
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.RGBA
	}{
		{"", recordingColor},
		{"red", color.RGBA{R: 0xff, A: 0xff}},
		{" Blue ", color.RGBA{B: 0xff, A: 0xff}},
		{"#1e90FF", color.RGBA{R: 0x1e, G: 0x90, B: 0xff, A: 0xff}},
	}
	for _, c := range cases {
		got, err := ParseColor(c.in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseColor(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	for _, bad := range []string{"not-a-colour", "#12345", "#gggggg", "1e90ff"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("ParseColor(%q) should fail", bad)
		}
	}
}
