// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-clockwork
//
// go-clockwork is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-clockwork is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-clockwork.  If not, see <https://www.gnu.org/licenses/>.

package mesh

import (
	"context"
	"fmt"

	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/network"
)

// Subscription is an agent's pair of sessions to a hub: COMMANDs arrive
// on Broadcast and replies leave on Control.
type Subscription struct {
	Broadcast *network.Session
	Control   *network.Session
}

// Subscribe connects to a hub's broadcast and control endpoints under a
// freshly generated identity. hub is the hub's public certificate.
func Subscribe(ctx context.Context, broadcast, control string, hub *crypto.Certificate, opts network.DialOptions) (*Subscription, error) {
	ephemeral, err := crypto.Generate(crypto.Encryption, "", nil)
	if err != nil {
		return nil, err
	}
	if opts.Log != nil {
		opts.Log.Infof("Connecting to the mesh control at %s", control)
	}
	c, err := network.Dial(ctx, control, ephemeral, hub, opts)
	if err != nil {
		return nil, fmt.Errorf("mesh control %s: %w", control, err)
	}
	if opts.Log != nil {
		opts.Log.Infof("Subscribing to the mesh broadcast at %s", broadcast)
	}
	b, err := network.Dial(ctx, broadcast, ephemeral, hub, opts)
	if err != nil {
		c.Shutdown(0)
		return nil, fmt.Errorf("mesh broadcast %s: %w", broadcast, err)
	}
	return &Subscription{Broadcast: b, Control: c}, nil
}

// Close shuts both sessions down.
func (s *Subscription) Close() {
	s.Broadcast.Shutdown(0)
	s.Control.Shutdown(0)
}
