/*
NAME
  video.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package video provides a Source implementation that reads frames from a
// video file or camera via OpenCV, delivering them as NV21 planar frames
// sized for the MDEC encoder.
package video

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ausocean/psxav/device"
	"github.com/ausocean/utils/logging"
)

// Config parameterises a video source.
type Config struct {
	// Input is a file path, or a device index string such as "0" for a
	// camera.
	Input string

	// Width and Height of delivered frames; inputs at other sizes are
	// rescaled. Both must be multiples of 16.
	Width  int
	Height int
}

// Video is a Source that pulls frames from an OpenCV capture, converting
// each to NV21 as the pipeline demands them.
type Video struct {
	device.Buffer

	cap    *gocv.VideoCapture
	cfg    Config
	bgr    gocv.Mat
	scaled gocv.Mat
	yuv    gocv.Mat
	log    logging.Logger
	err    error
}

// New opens the capture described by cfg.
func New(l logging.Logger, cfg Config) (*Video, error) {
	if cfg.Width%16 != 0 || cfg.Height%16 != 0 {
		return nil, fmt.Errorf("video: dimensions %dx%d are not multiples of 16", cfg.Width, cfg.Height)
	}

	cap, err := gocv.OpenVideoCapture(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("video: could not open capture %q: %w", cfg.Input, err)
	}

	v := &Video{
		cap:    cap,
		cfg:    cfg,
		bgr:    gocv.NewMat(),
		scaled: gocv.NewMat(),
		yuv:    gocv.NewMat(),
		log:    l,
	}
	v.SetPoll(v.pollFrame)

	l.Debug("video source opened", "input", cfg.Input, "width", cfg.Width, "height", cfg.Height)
	return v, nil
}

// Err returns the first capture error encountered, if any.
func (v *Video) Err() error { return v.err }

// pollFrame grabs one frame, rescales it to the configured size and
// converts it to NV21.
func (v *Video) pollFrame() bool {
	if !v.cap.Read(&v.bgr) || v.bgr.Empty() {
		return false
	}

	src := v.bgr
	if v.bgr.Cols() != v.cfg.Width || v.bgr.Rows() != v.cfg.Height {
		gocv.Resize(v.bgr, &v.scaled, image.Pt(v.cfg.Width, v.cfg.Height), 0, 0, gocv.InterpolationArea)
		src = v.scaled
	}

	// OpenCV converts forward to I420 (Y, U plane, V plane); NV21 wants
	// the chroma planes interleaved V-first.
	gocv.CvtColor(src, &v.yuv, gocv.ColorBGRToYUVI420)
	raw, err := v.yuv.DataPtrUint8()
	if err != nil {
		v.err = fmt.Errorf("video: could not access frame data: %w", err)
		v.log.Error("could not access frame data", "error", err)
		return false
	}

	v.PushFrame(i420ToNV21(raw, v.cfg.Width, v.cfg.Height))
	return true
}

// i420ToNV21 repacks planar I420 chroma into the interleaved VU plane the
// MDEC macroblock extractor reads.
func i420ToNV21(raw []byte, width, height int) []byte {
	lumaSize := width * height
	chromaSize := lumaSize / 4

	frame := make([]byte, lumaSize*3/2)
	copy(frame, raw[:lumaSize])

	u := raw[lumaSize : lumaSize+chromaSize]
	vp := raw[lumaSize+chromaSize : lumaSize+2*chromaSize]
	c := frame[lumaSize:]
	for i := 0; i < chromaSize; i++ {
		c[2*i] = vp[i]
		c[2*i+1] = u[i]
	}
	return frame
}

// Close releases the capture and its scratch mats.
func (v *Video) Close() error {
	v.bgr.Close()
	v.scaled.Close()
	v.yuv.Close()
	return v.cap.Close()
}
