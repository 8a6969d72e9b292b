/*
NAME
  audio_windows.go

AUTHORS
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package revid

import (
	"errors"

	"github.com/ausocean/psxav/device"
)

func (r *Revid) setupAudio() (device.Source, error) {
	return nil, errors.New("audio capture not implemented on Windows")
}
