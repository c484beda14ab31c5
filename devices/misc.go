// Copyright 2018 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devices helps to query kernel network interfaces: their
// drivers, addresses and number of hardware queues.
package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfsRoot is a directory with network interfaces. It is changed by
// tests.
var sysfsRoot = PathSysClassNet

func readlinkBase(path string) (string, error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("readlink %s failed: %s", path, err.Error())
	}
	return filepath.Base(target), nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readInt(path string) (int, error) {
	s, err := readTrimmed(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
