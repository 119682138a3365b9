package api

import (
	"encoding/xml"
	"fmt"
)

// fallbackMessage is spoken to the caller whenever audio could not be produced.
const fallbackMessage = "Sorry, there was an error processing your request."

// fallbackTwiML is precomputed so the error path itself cannot fail.
const fallbackTwiML = xml.Header + "<Response>\n    <Say>" + fallbackMessage + "</Say>\n</Response>"

// twimlResponse is a TwiML <Response> holding at most one verb.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Play    string   `xml:"Play,omitempty"`
	Say     string   `xml:"Say,omitempty"`
}

// playTwiML renders a response that plays the audio at audioURL.
func playTwiML(audioURL string) ([]byte, error) {
	return renderTwiML(twimlResponse{Play: audioURL})
}

// renderTwiML serializes resp with the XML declaration and four-space indent.
func renderTwiML(resp twimlResponse) ([]byte, error) {
	body, err := xml.MarshalIndent(resp, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
