/*
NAME
  audio_linux.go

AUTHORS
  Alan Noble <alan@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package revid

import (
	"github.com/ausocean/psxav/device"
	"github.com/ausocean/psxav/device/alsa"
)

// setupAudio creates and configures an ALSA capture source delivering
// samples at the encoder's configured rate and channel count.
func (r *Revid) setupAudio() (device.Source, error) {
	r.cfg.Logger.Debug("configuring ALSA source")
	d, err := alsa.New(r.cfg.Logger, alsa.Config{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
	})
	if err != nil {
		return nil, err
	}
	r.cfg.Logger.Info("ALSA source configured")
	return d, nil
}
