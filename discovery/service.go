// Package discovery implements DNS-SD/mDNS advertisement and browsing
// (spec §4.3): the three fabric service types, periodic re-announce, and
// the controller-side indexed view of currently-known peers.
/*
 * Copyright (c) 2024, LTP fabric contributors.
 */
package discovery

import (
	"strings"

	"github.com/ltpfabric/ltp/device"
)

// Service type strings (spec §4.3).
const (
	ServiceSink       = "_ltp-sink._tcp"
	ServiceSource     = "_ltp-source._tcp"
	ServiceController = "_ltp-controller._tcp"
)

// TXT record keys (spec §4.3, §6 "Service TXT records").
const (
	txtVersion = "ver"
	txtName    = "name"
	txtDesc    = "desc"
	txtID      = "id"
	txtCtrl    = "ctrl"

	txtSinkType  = "type"
	txtPixels    = "pixels"
	txtDim       = "dim"
	txtColor     = "color"
	txtRate      = "rate"
	txtOutput    = "output"
	txtSourceMode = "mode"
)

// DiscoveredDevice is the controller's view of a peer learned from mDNS
// (spec §3 "Discovered device record"). Ownership: exclusively owned by
// the controller/browser; never shared with peers.
type DiscoveredDevice struct {
	StableID    string // assigned at first discovery, survives peer UUID churn
	ServiceType string
	Instance    string
	Host        string
	Port        int
	TXT         map[string]string

	ID       string
	Name     string
	Desc     string
	Version  string
	HasCtrl  bool
}

// Role reports which of the three fabric roles a TXT-parsed service type
// represents.
func RoleForServiceType(serviceType string) device.Role {
	switch serviceType {
	case ServiceSink:
		return device.RoleSink
	case ServiceSource:
		return device.RoleSource
	default:
		return device.RoleController
	}
}

func parseTXT(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if idx := strings.IndexByte(f, '='); idx >= 0 {
			out[f[:idx]] = f[idx+1:]
		}
	}
	return out
}

func buildTXT(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
