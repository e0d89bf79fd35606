package model

import (
	"fmt"
	"strings"
)

// ProtocolType selects the lending/farming backend a chamber runs on.
type ProtocolType uint8

const (
	ProtocolTulip ProtocolType = iota
	ProtocolFrancium
)

// SupportedProtocol is the only backend with an adapter implementation.
const SupportedProtocol = ProtocolTulip

// KnownProtocols lists every protocol type a chamber record can carry.
var KnownProtocols = []ProtocolType{ProtocolTulip, ProtocolFrancium}

type ProtocolInfo struct {
	Type      ProtocolType `json:"type"`
	Code      uint8        `json:"code"`
	Supported bool         `json:"supported"`
}

func (p ProtocolType) String() string {
	switch p {
	case ProtocolTulip:
		return "tulip"
	case ProtocolFrancium:
		return "francium"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

func ParseProtocolType(s string) (ProtocolType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tulip", "0":
		return ProtocolTulip, nil
	case "francium", "1":
		return ProtocolFrancium, nil
	default:
		return 0, fmt.Errorf("unknown protocol type %q", s)
	}
}

func (p ProtocolType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *ProtocolType) UnmarshalText(b []byte) error {
	v, err := ParseProtocolType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
