package camera

import (
	"errors"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

type gocvDevice struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// NewGoCVOpener opens device as a numeric index ("0") or a path/URL.
func NewGoCVOpener(device string) Opener {
	return func() (Device, error) {
		var source interface{} = device
		if id, err := strconv.Atoi(device); err == nil {
			source = id
		}

		capture, err := gocv.OpenVideoCapture(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open capture device %s: %w", device, err)
		}
		if !capture.IsOpened() {
			capture.Close()
			return nil, fmt.Errorf("capture device %s is not available", device)
		}

		return &gocvDevice{capture: capture, frame: gocv.NewMat()}, nil
	}
}

func (d *gocvDevice) ReadFrame() ([]byte, error) {
	if ok := d.capture.Read(&d.frame); !ok || d.frame.Empty() {
		return nil, errors.New("camera returned no frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())
	return frame, nil
}

func (d *gocvDevice) Close() error {
	d.frame.Close()
	return d.capture.Close()
}
