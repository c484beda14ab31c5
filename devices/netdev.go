// Copyright 2018 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devices

import (
	"os"
	"sort"
)

// NetDevice is a kernel network interface description read from
// sysfs.
type NetDevice struct {
	Name     string
	Driver   string
	MAC      string
	MTU      int
	State    string
	RxQueues int
	TxQueues int
}

func (d *NetDevice) String() string {
	return NetDeviceStringer.With(d.Name, d.Driver, d.MAC, d.MTU, d.State, d.RxQueues, d.TxQueues)
}

// GetNetDevice reads description of interface nicName. Virtual
// interfaces have no driver, it is reported as empty string.
func GetNetDevice(nicName string) (*NetDevice, error) {
	if _, err := os.Stat(sysfsRoot + "/" + nicName); err != nil {
		return nil, err
	}
	d := &NetDevice{Name: nicName}
	d.Driver, _ = GetDeviceDriver(nicName)
	d.MAC, _ = readTrimmed(pathSysClassNetAddress.With(sysfsRoot, nicName))
	d.MTU, _ = readInt(pathSysClassNetMTU.With(sysfsRoot, nicName))
	d.State, _ = readTrimmed(pathSysClassNetOperState.With(sysfsRoot, nicName))
	var err error
	d.RxQueues, d.TxQueues, err = CountQueues(nicName)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDeviceDriver returns name of kernel driver bound to interface.
func GetDeviceDriver(nicName string) (string, error) {
	return readlinkBase(pathSysClassNetDeviceDriver.With(sysfsRoot, nicName))
}

// CountQueues returns number of hardware receive and transmit queues
// of interface.
func CountQueues(nicName string) (rx, tx int, err error) {
	entries, err := os.ReadDir(pathSysClassNetQueues.With(sysfsRoot, nicName))
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case rRxQueue.MatchString(name):
			rx++
		case rTxQueue.MatchString(name):
			tx++
		}
	}
	return rx, tx, nil
}

// ListNetDevices returns sorted names of all network interfaces.
func ListNetDevices() ([]string, error) {
	entries, err := os.ReadDir(sysfsRoot)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
