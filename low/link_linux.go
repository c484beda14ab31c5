// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package low

import (
	"github.com/vishvananda/netlink"

	"github.com/intel-go/nff-bricks/common"
	"github.com/intel-go/nff-bricks/types"
)

// Link describes kernel network interface.
type Link struct {
	Name  string
	Index int
	MAC   types.MACAddress
	MTU   int
}

// LookupLink finds kernel network interface by name.
func LookupLink(name string) (Link, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return Link{}, common.WrapWithNFError(err, "can't find interface "+name, common.FailToInitPort)
	}
	attrs := link.Attrs()
	return Link{
		Name:  attrs.Name,
		Index: attrs.Index,
		MAC:   types.NetHWAddressToMAC(attrs.HardwareAddr),
		MTU:   attrs.MTU,
	}, nil
}

// SetLinkUp brings interface up and optionally switches it to
// promiscuous mode.
func SetLinkUp(name string, promisc bool) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return common.WrapWithNFError(err, "can't find interface "+name, common.FailToInitPort)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return common.WrapWithNFError(err, "can't bring up interface "+name, common.FailToInitPort)
	}
	if promisc {
		if err := netlink.SetPromiscOn(link); err != nil {
			return common.WrapWithNFError(err, "can't set promiscuous mode on "+name, common.FailToInitPort)
		}
	}
	return nil
}
