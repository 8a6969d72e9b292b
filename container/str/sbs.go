/*
NAME
  sbs.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package str

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/psxav/codec/mdec"
)

// SBSConfig parameterises a fixed-slot .sbs video stream: one BS frame
// buffer per Alignment bytes, no CD sector framing and no audio.
type SBSConfig struct {
	Version   mdec.Version
	Width     int
	Height    int
	Alignment int
}

// EncodeSBS drains every video frame from src, encoding each into an
// Alignment-sized slot written to w, and returns the number of frames
// written. A frame too complex to fit its slot at any quantization scale
// is an error rather than a truncation.
func EncodeSBS(cfg SBSConfig, src Source, w io.Writer) (int, error) {
	if cfg.Alignment <= 8 {
		return 0, fmt.Errorf("str: sbs alignment %d leaves no room for frame data", cfg.Alignment)
	}

	enc, err := mdec.NewEncoder(cfg.Version, cfg.Width, cfg.Height)
	if err != nil {
		return 0, err
	}

	slot := make([]byte, cfg.Alignment)
	frames := 0
	for ; src.Ensure(0, 1); frames++ {
		f, err := enc.EncodeFrame(src.Frames()[0], cfg.Alignment)
		if err != nil {
			return frames, errors.Wrapf(err, "str: sbs frame %d", frames)
		}

		for i := range slot {
			slot[i] = 0
		}
		f.Header.Put(slot)
		copy(slot[8:], f.Payload)

		src.Retire(0, 1)
		if _, err := w.Write(slot); err != nil {
			return frames, errors.Wrap(err, "str: sbs slot write failed")
		}
	}
	return frames, nil
}
