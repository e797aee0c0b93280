package wire

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// message type discriminators (spec §4.1)
const (
	TypeCapabilityRequest   = "capability_request"
	TypeCapabilityResponse  = "capability_response"
	TypeStreamSetup         = "stream_setup"
	TypeStreamSetupResp     = "stream_setup_response"
	TypeStreamControl       = "stream_control"
	TypeStreamControlResp   = "stream_control_response"
	TypeControlGet          = "control_get"
	TypeControlGetResp      = "control_get_response"
	TypeControlSet          = "control_set"
	TypeControlSetResp      = "control_set_response"
	TypeControlChanged      = "control_changed"
	TypeSubscribe           = "subscribe"
	TypeSubscribeResp       = "subscribe_response"
	TypeRouteCreate         = "route_create"
	TypeRouteCreateResp     = "route_create_response"
	TypeRouteDelete         = "route_delete"
	TypeRouteDeleteResp     = "route_delete_response"
	TypeError               = "error"
)

// StreamAction is the stream_control action enum (spec §4.1).
type StreamAction string

const (
	ActionStart StreamAction = "start"
	ActionStop  StreamAction = "stop"
	ActionPause StreamAction = "pause"
)

// Message is implemented by every control-channel message via the embedded
// Header — seq correlates request to response on a single connection (spec
// §5 "Ordering guarantees"); messages with no seq (e.g. control_changed) are
// routed to an out-of-band handler (spec §4.2 "Control client").
type Message interface {
	GetType() string
	GetSeq() (int64, bool)
}

// Header is embedded by every concrete message type.
type Header struct {
	Type string `json:"type"`
	Seq  *int64 `json:"seq,omitempty"`
}

func (h Header) GetType() string { return h.Type }
func (h Header) GetSeq() (int64, bool) {
	if h.Seq == nil {
		return 0, false
	}
	return *h.Seq, true
}

func newHeader(typ string, seq int64) Header {
	return Header{Type: typ, Seq: &seq}
}

// StreamFormat describes the negotiated color format + encoding of a stream
// (spec §3 "Stream").
type StreamFormat struct {
	Color    string `json:"color"`
	Encoding string `json:"encoding"`
}

// SubscribeTarget describes what a subscriber wants from a producer (spec
// §4.1 "subscribe").
type SubscribeTarget struct {
	Dimensions []int  `json:"dimensions"`
	Color      string `json:"color"`
	Rate       float64 `json:"rate"`
}

// ControlError is the per-id failure detail in a control_set_response
// (spec §4.1, §4.4.3).
type ControlError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RouteTransformSpec mirrors the Route "transform spec" (spec §3 "Route").
type RouteTransformSpec struct {
	ScaleMode  string  `json:"scale_mode"`
	Brightness float64 `json:"brightness"`
	Gamma      float64 `json:"gamma"`
	MirrorX    bool    `json:"mirror_x"`
	MirrorY    bool    `json:"mirror_y"`
}

type (
	CapabilityRequest struct {
		Header
	}
	CapabilityResponse struct {
		Header
		Device any `json:"device"` // device.SinkCapability or device.SourceCapability, kept as `any` to avoid an import cycle
	}

	StreamSetup struct {
		Header
		Format  StreamFormat `json:"format"`
		UDPPort int          `json:"udp_port,omitempty"`
	}
	StreamSetupResponse struct {
		Header
		Status   ErrorCode `json:"status"`
		UDPPort  int       `json:"udp_port"`
		StreamID string    `json:"stream_id"`
	}

	StreamControl struct {
		Header
		StreamID string       `json:"stream_id"`
		Action   StreamAction `json:"action"`
	}
	StreamControlResponse struct {
		Header
		Status   ErrorCode `json:"status"`
		StreamID string    `json:"stream_id"`
	}

	ControlGet struct {
		Header
		IDs []string `json:"ids,omitempty"`
	}
	ControlGetResponse struct {
		Header
		Status ErrorCode      `json:"status"`
		Values map[string]any `json:"values"`
	}

	ControlSet struct {
		Header
		Values map[string]any `json:"values"`
	}
	ControlSetResponse struct {
		Header
		Status  string                  `json:"status"` // "ok" | "partial"
		Applied map[string]any          `json:"applied"`
		Errors  map[string]ControlError `json:"errors,omitempty"`
	}

	ControlChanged struct {
		Header
		Values map[string]any `json:"values"`
	}

	Subscribe struct {
		Header
		Target       SubscribeTarget `json:"target"`
		CallbackHost string          `json:"callback_host,omitempty"`
		CallbackPort int             `json:"callback_port,omitempty"`
	}
	SubscribeResponse struct {
		Header
		Status   ErrorCode       `json:"status"`
		Actual   SubscribeTarget `json:"actual"`
		StreamID string          `json:"stream_id"`
	}

	RouteCreate struct {
		Header
		SourceID  string              `json:"source_id"`
		SinkID    string              `json:"sink_id"`
		Name      string              `json:"name,omitempty"`
		Mode      string              `json:"mode"`
		Transform RouteTransformSpec  `json:"transform,omitempty"`
	}
	RouteCreateResponse struct {
		Header
		Status  ErrorCode `json:"status"`
		RouteID string    `json:"route_id,omitempty"`
	}

	RouteDelete struct {
		Header
		RouteID string `json:"route_id"`
	}
	RouteDeleteResponse struct {
		Header
		Status ErrorCode `json:"status"`
	}

	ErrorMsg struct {
		Header
		Code    ErrorCode `json:"code"`
		Error   string    `json:"error"`
		Message string    `json:"message"`
	}
)

func NewCapabilityRequest(seq int64) *CapabilityRequest {
	return &CapabilityRequest{Header: newHeader(TypeCapabilityRequest, seq)}
}
func NewCapabilityResponse(seq int64, device any) *CapabilityResponse {
	return &CapabilityResponse{Header: newHeader(TypeCapabilityResponse, seq), Device: device}
}
func NewStreamSetup(seq int64, format StreamFormat, udpPort int) *StreamSetup {
	return &StreamSetup{Header: newHeader(TypeStreamSetup, seq), Format: format, UDPPort: udpPort}
}
func NewStreamSetupResponse(seq int64, status ErrorCode, udpPort int, streamID string) *StreamSetupResponse {
	return &StreamSetupResponse{Header: newHeader(TypeStreamSetupResp, seq), Status: status, UDPPort: udpPort, StreamID: streamID}
}
func NewStreamControl(seq int64, streamID string, action StreamAction) *StreamControl {
	return &StreamControl{Header: newHeader(TypeStreamControl, seq), StreamID: streamID, Action: action}
}
func NewStreamControlResponse(seq int64, status ErrorCode, streamID string) *StreamControlResponse {
	return &StreamControlResponse{Header: newHeader(TypeStreamControlResp, seq), Status: status, StreamID: streamID}
}
func NewControlGet(seq int64, ids []string) *ControlGet {
	return &ControlGet{Header: newHeader(TypeControlGet, seq), IDs: ids}
}
func NewControlGetResponse(seq int64, status ErrorCode, values map[string]any) *ControlGetResponse {
	return &ControlGetResponse{Header: newHeader(TypeControlGetResp, seq), Status: status, Values: values}
}
func NewControlSet(seq int64, values map[string]any) *ControlSet {
	return &ControlSet{Header: newHeader(TypeControlSet, seq), Values: values}
}
func NewControlSetResponse(seq int64, status string, applied map[string]any, errs map[string]ControlError) *ControlSetResponse {
	return &ControlSetResponse{Header: newHeader(TypeControlSetResp, seq), Status: status, Applied: applied, Errors: errs}
}
func NewControlChanged(values map[string]any) *ControlChanged {
	return &ControlChanged{Header: Header{Type: TypeControlChanged}, Values: values}
}
func NewSubscribe(seq int64, target SubscribeTarget, callbackHost string, callbackPort int) *Subscribe {
	return &Subscribe{Header: newHeader(TypeSubscribe, seq), Target: target, CallbackHost: callbackHost, CallbackPort: callbackPort}
}
func NewSubscribeResponse(seq int64, status ErrorCode, actual SubscribeTarget, streamID string) *SubscribeResponse {
	return &SubscribeResponse{Header: newHeader(TypeSubscribeResp, seq), Status: status, Actual: actual, StreamID: streamID}
}
func NewRouteCreate(seq int64, sourceID, sinkID, name, mode string, tr RouteTransformSpec) *RouteCreate {
	return &RouteCreate{Header: newHeader(TypeRouteCreate, seq), SourceID: sourceID, SinkID: sinkID, Name: name, Mode: mode, Transform: tr}
}
func NewRouteCreateResponse(seq int64, status ErrorCode, routeID string) *RouteCreateResponse {
	return &RouteCreateResponse{Header: newHeader(TypeRouteCreateResp, seq), Status: status, RouteID: routeID}
}
func NewRouteDelete(seq int64, routeID string) *RouteDelete {
	return &RouteDelete{Header: newHeader(TypeRouteDelete, seq), RouteID: routeID}
}
func NewRouteDeleteResponse(seq int64, status ErrorCode) *RouteDeleteResponse {
	return &RouteDeleteResponse{Header: newHeader(TypeRouteDeleteResp, seq), Status: status}
}
func NewError(seq *int64, code ErrorCode, errStr, message string) *ErrorMsg {
	return &ErrorMsg{Header: Header{Type: TypeError, Seq: seq}, Code: code, Error: errStr, Message: message}
}

// Encode marshals a control message as newline-terminated JSON (spec §4.1
// "Control messages").
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Decode parses one newline-delimited JSON line into its concrete message
// type, dispatching on the `type` discriminator (spec §4.1). Malformed JSON
// or an unrecognized type yields a *ProtoError{Code: InvalidFormat}.
func Decode(line []byte) (Message, error) {
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, newProtoErr(InvalidFormat, "malformed json: %v", err)
	}
	var m Message
	switch h.Type {
	case TypeCapabilityRequest:
		m = &CapabilityRequest{}
	case TypeCapabilityResponse:
		m = &CapabilityResponse{}
	case TypeStreamSetup:
		m = &StreamSetup{}
	case TypeStreamSetupResp:
		m = &StreamSetupResponse{}
	case TypeStreamControl:
		m = &StreamControl{}
	case TypeStreamControlResp:
		m = &StreamControlResponse{}
	case TypeControlGet:
		m = &ControlGet{}
	case TypeControlGetResp:
		m = &ControlGetResponse{}
	case TypeControlSet:
		m = &ControlSet{}
	case TypeControlSetResp:
		m = &ControlSetResponse{}
	case TypeControlChanged:
		m = &ControlChanged{}
	case TypeSubscribe:
		m = &Subscribe{}
	case TypeSubscribeResp:
		m = &SubscribeResponse{}
	case TypeRouteCreate:
		m = &RouteCreate{}
	case TypeRouteCreateResp:
		m = &RouteCreateResponse{}
	case TypeRouteDelete:
		m = &RouteDelete{}
	case TypeRouteDeleteResp:
		m = &RouteDeleteResponse{}
	case TypeError:
		m = &ErrorMsg{}
	default:
		return nil, newProtoErr(InvalidFormat, "unknown message type %q", h.Type)
	}
	if err := json.Unmarshal(line, m); err != nil {
		return nil, newProtoErr(InvalidFormat, "malformed %s: %v", h.Type, err)
	}
	return m, nil
}
