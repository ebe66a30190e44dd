/*
 * file: envelope.go
 * package: services
 * description:
 *     Bidirectional JSON message framing for the socket surface: inbound
 *     envelopes carry a protocol version, type, payload and optional request
 *     correlation; outbound envelopes are either a response (echoing reqId),
 *     an event (server-originated broadcast), or an error-response.
 */

package services

import "encoding/json"

// ProtocolVersion is the only envelope version this server understands.
const ProtocolVersion = 1

// EnvelopeIn is an inbound socket message as received from a client.
type EnvelopeIn struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	ReqID   string          `json:"reqId,omitempty"`
	TS      int64           `json:"ts,omitempty"`
}

// WireError is the error shape carried by a failed response envelope.
type WireError struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// EnvelopeOut is an outbound socket message: a response, an event, or an
// error-response, distinguished by which optional fields are populated.
type EnvelopeOut struct {
	V       int         `json:"v"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	ReqID   string      `json:"reqId,omitempty"`
	Ok      *bool       `json:"ok,omitempty"`
	Error   *WireError  `json:"error,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

/*
 * NewEvent builds a server-originated broadcast envelope: no reqId, no ok.
 *
 * Parameters:
 *   - eventType (string): The outbound event type, e.g. "room.snapshot".
 *   - payload (interface{}): The event payload, marshaled as-is.
 *
 * Returns:
 *   - EnvelopeOut: The assembled event envelope.
 */
func NewEvent(eventType string, payload interface{}) EnvelopeOut {
	return EnvelopeOut{V: ProtocolVersion, Type: eventType, Payload: payload}
}

/*
 * NewResponse builds a successful response envelope correlated to reqId.
 *
 * Parameters:
 *   - reqType (string): The inbound request type this responds to.
 *   - reqID (string): The client-chosen correlation id, echoed verbatim.
 *   - payload (interface{}): The response payload.
 *
 * Returns:
 *   - EnvelopeOut: The assembled response envelope with ok: true.
 */
func NewResponse(reqType, reqID string, payload interface{}) EnvelopeOut {
	return EnvelopeOut{
		V:       ProtocolVersion,
		Type:    reqType + ".resp",
		Payload: payload,
		ReqID:   reqID,
		Ok:      boolPtr(true),
	}
}

/*
 * NewErrorResponse builds a failed response envelope correlated to reqID.
 * reqID may be empty for failures detected before a reqId is known.
 *
 * Parameters:
 *   - reqType (string): The inbound request type this responds to, or
 *     "unknown" when the type itself could not be determined.
 *   - reqID (string): The client-chosen correlation id, echoed verbatim.
 *   - kind (Kind): The error kind, serialized as the wire "code".
 *   - message (string): A human-readable description of the failure.
 *
 * Returns:
 *   - EnvelopeOut: The assembled response envelope with ok: false.
 */
func NewErrorResponse(reqType, reqID string, kind Kind, message string) EnvelopeOut {
	return EnvelopeOut{
		V:     ProtocolVersion,
		Type:  reqType + ".resp",
		ReqID: reqID,
		Ok:    boolPtr(false),
		Error: &WireError{Code: kind, Message: message},
	}
}

/*
 * DecodeEnvelope parses a raw text frame into an EnvelopeIn.
 *
 * Parameters:
 *   - raw ([]byte): The raw text frame payload.
 *
 * Returns:
 *   - *EnvelopeIn: The parsed envelope.
 *   - error: A non-nil error if the frame is not valid JSON or not shaped
 *     like an envelope.
 */
func DecodeEnvelope(raw []byte) (*EnvelopeIn, error) {
	var env EnvelopeIn
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
