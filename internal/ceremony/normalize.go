// ABOUTME: Builds the JSON payloads the server finish endpoints accept
// ABOUTME: Applies text normalization to every binary ceremony response field

package ceremony

import "fmt"

// AttestationPayload is the normalized registration response submitted to the
// server's passkey register-finish endpoint. The server tolerates no
// alternate encodings, so every binary field goes through ToText.
type AttestationPayload struct {
	ID       string                    `json:"id"`
	RawID    string                    `json:"rawId"`
	Type     string                    `json:"type"`
	Response AttestationResponseFields `json:"response"`
}

// AttestationResponseFields holds the normalized attestation response body.
type AttestationResponseFields struct {
	AttestationObject string   `json:"attestationObject"`
	ClientDataJSON    string   `json:"clientDataJSON"`
	Transports        []string `json:"transports"`
}

// AssertionPayload is the normalized authentication response submitted to the
// server's passkey login-finish endpoint.
type AssertionPayload struct {
	ID       string                  `json:"id"`
	RawID    string                  `json:"rawId"`
	Type     string                  `json:"type"`
	Response AssertionResponseFields `json:"response"`
}

// AssertionResponseFields holds the normalized assertion response body.
// UserHandle is null when the authenticator returned none.
type AssertionResponseFields struct {
	AuthenticatorData string  `json:"authenticatorData"`
	ClientDataJSON    string  `json:"clientDataJSON"`
	Signature         string  `json:"signature"`
	UserHandle        *string `json:"userHandle"`
}

// NormalizeAttestation converts a raw create-ceremony result into the payload
// shape the server accepts.
func NormalizeAttestation(res *AttestationResult) (*AttestationPayload, error) {
	rawID, err := requireText("rawId", res.RawID)
	if err != nil {
		return nil, err
	}
	attObj, err := requireText("attestationObject", res.AttestationObject)
	if err != nil {
		return nil, err
	}
	clientData, err := requireText("clientDataJSON", res.ClientDataJSON)
	if err != nil {
		return nil, err
	}

	transports := res.Transports
	if transports == nil {
		transports = []string{}
	}

	return &AttestationPayload{
		ID:    res.ID,
		RawID: rawID,
		Type:  res.Type,
		Response: AttestationResponseFields{
			AttestationObject: attObj,
			ClientDataJSON:    clientData,
			Transports:        transports,
		},
	}, nil
}

// NormalizeAssertion converts a raw get-ceremony result into the payload
// shape the server accepts.
func NormalizeAssertion(res *AssertionResult) (*AssertionPayload, error) {
	rawID, err := requireText("rawId", res.RawID)
	if err != nil {
		return nil, err
	}
	authData, err := requireText("authenticatorData", res.AuthenticatorData)
	if err != nil {
		return nil, err
	}
	clientData, err := requireText("clientDataJSON", res.ClientDataJSON)
	if err != nil {
		return nil, err
	}
	sig, err := requireText("signature", res.Signature)
	if err != nil {
		return nil, err
	}

	// userHandle is legitimately absent for non-resident credentials.
	var userHandle *string
	if text, ok, err := ToText(res.UserHandle); err != nil {
		return nil, fmt.Errorf("normalizing userHandle: %w", err)
	} else if ok {
		userHandle = &text
	}

	return &AssertionPayload{
		ID:    res.ID,
		RawID: rawID,
		Type:  res.Type,
		Response: AssertionResponseFields{
			AuthenticatorData: authData,
			ClientDataJSON:    clientData,
			Signature:         sig,
			UserHandle:        userHandle,
		},
	}, nil
}

// requireText normalizes a field that must be present in the response.
func requireText(field string, v any) (string, error) {
	text, ok, err := ToText(v)
	if err != nil {
		return "", fmt.Errorf("normalizing %s: %w", field, err)
	}
	if !ok {
		return "", fmt.Errorf("normalizing %s: field is absent", field)
	}
	return text, nil
}
