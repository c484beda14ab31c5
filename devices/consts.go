// Copyright 2018 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devices

import (
	"fmt"
	"regexp"
)

type stringBuilder string

func (s stringBuilder) With(args ...interface{}) string {
	return fmt.Sprintf(string(s), args...)
}

// PathSysClassNet is a directory with all kernel network interfaces.
const PathSysClassNet = "/sys/class/net"

var (
	pathSysClassNetDeviceDriver stringBuilder = "%s/%s/device/driver"
	pathSysClassNetQueues       stringBuilder = "%s/%s/queues"
	pathSysClassNetAddress      stringBuilder = "%s/%s/address"
	pathSysClassNetMTU          stringBuilder = "%s/%s/mtu"
	pathSysClassNetOperState    stringBuilder = "%s/%s/operstate"
)

var (
	NetDeviceStringer stringBuilder = "Name:\t%s\nDriver:\t%s\nMAC:\t%s\nMTU:\t%d\nState:\t%s\nQueues:\t%d rx, %d tx"
)

var (
	rRxQueue *regexp.Regexp
	rTxQueue *regexp.Regexp
)

func init() {
	rRxQueue = regexp.MustCompile("^rx-(\\d+)$")
	rTxQueue = regexp.MustCompile("^tx-(\\d+)$")
}
