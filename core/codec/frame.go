// Package codec parses and serializes the five DSR wire message kinds.
//
// Frames are ASCII, colon-separated, one frame per radio transmission
// (spec §6). Each kind is modeled as its own Go type implementing the Frame
// interface — a tagged union with one arm per KIND, per the rearchitecture
// guidance in spec §9 — rather than as a single struct with optional
// fields. Parse is the single boundary between raw bytes and the variant;
// callers downstream never see an unparsed string again.
package codec

import (
	"strconv"
	"strings"

	"github.com/dsrmesh/dsrnode/core"
)

// Kind identifies which of the five DSR message types a Frame carries.
type Kind uint8

const (
	KindHello Kind = iota
	KindRREQ
	KindRREP
	KindData
	KindResp
)

// String returns the wire token for the kind (also used as a metrics label).
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "HELLO"
	case KindRREQ:
		return "RREQ"
	case KindRREP:
		return "RREP"
	case KindData:
		return "DATA"
	case KindResp:
		return "RESP"
	default:
		return "UNKNOWN"
	}
}

// Frame is implemented by each of the five message kinds.
type Frame interface {
	Kind() Kind
}

// HelloFrame announces Self's presence to in-range neighbors.
type HelloFrame struct {
	Self core.NodeID
}

func (HelloFrame) Kind() Kind { return KindHello }

// RREQFrame is a route discovery request flooded toward Destination.
type RREQFrame struct {
	Source      core.NodeID
	Destination core.NodeID
	Stamp       uint32
	Route       core.Route // hops accumulated so far, not including Source
}

func (RREQFrame) Kind() Kind { return KindRREQ }

// RREPFrame carries a discovered route back to the RREQ originator.
type RREPFrame struct {
	Source      core.NodeID // the responder (this RREP's originator)
	Destination core.NodeID // the RREQ originator (this RREP's final destination)
	Stamp       uint32      // the RREQ's stamp, carried through unchanged
	Route       core.Route  // path to follow back toward Destination
}

func (RREPFrame) Kind() Kind { return KindRREP }

// DataFrame carries an application request along a known source route.
type DataFrame struct {
	Source      core.NodeID
	Destination core.NodeID
	Stamp       uint32
	Route       core.Route
}

func (DataFrame) Kind() Kind { return KindData }

// RespFrame carries an application response, integrity-checked (spec §4.2).
type RespFrame struct {
	Source      core.NodeID // the DATA destination (this RESP's originator)
	Destination core.NodeID // the original requester (this RESP's destination)
	Stamp       uint32      // the DATA's stamp, identifying the transaction
	Route       core.Route  // path back to Destination
	Payload     []byte      // opaque application payload; must not contain ':'
	Check       uint16      // one's-complement checksum over the preceding fields
}

func (RespFrame) Kind() Kind { return KindResp }

const (
	sep      = ":"
	routeSep = "-"
)

// ParseRoute splits a hyphen-separated route field. An empty field decodes
// to an empty (non-nil-checked-by-len) route, per spec §6.
func ParseRoute(field string) core.Route {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, routeSep)
	route := make(core.Route, len(parts))
	for i, p := range parts {
		route[i] = core.NodeID(p)
	}
	return route
}

// formatRoute joins a route into its hyphen-separated wire form.
func formatRoute(r core.Route) string {
	if len(r) == 0 {
		return ""
	}
	parts := make([]string, len(r))
	for i, hop := range r {
		parts[i] = string(hop)
	}
	return strings.Join(parts, routeSep)
}

func parseStamp(field string) (uint32, bool) {
	v, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// Parse decodes one wire frame. Malformed input returns ErrMalformed and a
// nil Frame; the caller is expected to drop the frame and increment a
// malformed-frame counter (spec §7), never to panic or retry parsing.
func Parse(line string) (Frame, error) {
	kindField, rest, ok := strings.Cut(line, sep)
	if !ok {
		return nil, ErrMalformed
	}

	switch kindField {
	case "HELLO":
		if rest == "" || strings.Contains(rest, sep) {
			return nil, ErrMalformed
		}
		return HelloFrame{Self: core.NodeID(rest)}, nil

	case "RREQ":
		fields := strings.SplitN(rest, sep, 4)
		if len(fields) != 4 {
			return nil, ErrMalformed
		}
		stamp, ok := parseStamp(fields[2])
		if !ok {
			return nil, ErrMalformed
		}
		return RREQFrame{
			Source:      core.NodeID(fields[0]),
			Destination: core.NodeID(fields[1]),
			Stamp:       stamp,
			Route:       ParseRoute(fields[3]),
		}, nil

	case "RREP":
		fields := strings.SplitN(rest, sep, 4)
		if len(fields) != 4 {
			return nil, ErrMalformed
		}
		stamp, ok := parseStamp(fields[2])
		if !ok {
			return nil, ErrMalformed
		}
		return RREPFrame{
			Source:      core.NodeID(fields[0]),
			Destination: core.NodeID(fields[1]),
			Stamp:       stamp,
			Route:       ParseRoute(fields[3]),
		}, nil

	case "DATA":
		fields := strings.SplitN(rest, sep, 4)
		if len(fields) != 4 {
			return nil, ErrMalformed
		}
		stamp, ok := parseStamp(fields[2])
		if !ok {
			return nil, ErrMalformed
		}
		return DataFrame{
			Source:      core.NodeID(fields[0]),
			Destination: core.NodeID(fields[1]),
			Stamp:       stamp,
			Route:       ParseRoute(fields[3]),
		}, nil

	case "RESP":
		fields := strings.SplitN(rest, sep, 6)
		if len(fields) != 6 {
			return nil, ErrMalformed
		}
		stamp, ok := parseStamp(fields[2])
		if !ok {
			return nil, ErrMalformed
		}
		check, err := strconv.ParseUint(fields[5], 10, 16)
		if err != nil {
			return nil, ErrMalformed
		}
		return RespFrame{
			Source:      core.NodeID(fields[0]),
			Destination: core.NodeID(fields[1]),
			Stamp:       stamp,
			Route:       ParseRoute(fields[3]),
			Payload:     []byte(fields[4]),
			Check:       uint16(check),
		}, nil

	default:
		return nil, ErrMalformed
	}
}

// Encode serializes f to its wire form. RespFrame.Check is trusted as
// given — use BuildResp to compute it from a payload.
func Encode(f Frame) string {
	switch v := f.(type) {
	case HelloFrame:
		return "HELLO" + sep + string(v.Self)
	case RREQFrame:
		return strings.Join([]string{"RREQ", string(v.Source), string(v.Destination), strconv.FormatUint(uint64(v.Stamp), 10), formatRoute(v.Route)}, sep)
	case RREPFrame:
		return strings.Join([]string{"RREP", string(v.Source), string(v.Destination), strconv.FormatUint(uint64(v.Stamp), 10), formatRoute(v.Route)}, sep)
	case DataFrame:
		return strings.Join([]string{"DATA", string(v.Source), string(v.Destination), strconv.FormatUint(uint64(v.Stamp), 10), formatRoute(v.Route)}, sep)
	case RespFrame:
		return encodeRespWithCheck(v, v.Check)
	default:
		return ""
	}
}

func encodeRespBody(r RespFrame) string {
	return strings.Join([]string{"RESP", string(r.Source), string(r.Destination), strconv.FormatUint(uint64(r.Stamp), 10), formatRoute(r.Route), string(r.Payload)}, sep)
}

// RespBody returns the portion of a RESP's wire form that the integrity
// check covers (everything before the trailing check field), reconstructed
// from a parsed RespFrame rather than the original bytes.
func RespBody(r RespFrame) string {
	return encodeRespBody(r)
}

func encodeRespWithCheck(r RespFrame, check uint16) string {
	return encodeRespBody(r) + sep + strconv.FormatUint(uint64(check), 10)
}

// BuildResp computes the integrity check over the RESP body (spec §4.2,
// §4.6) and returns a RespFrame with Check populated.
func BuildResp(source, destination core.NodeID, stamp uint32, route core.Route, payload []byte) RespFrame {
	r := RespFrame{Source: source, Destination: destination, Stamp: stamp, Route: route, Payload: payload}
	r.Check = Checksum([]byte(encodeRespBody(r)))
	return r
}
