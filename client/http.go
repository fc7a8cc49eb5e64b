package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openr "github.com/robertprast/openr"
	"github.com/robertprast/openr/routes"
)

// httpCapability is the over-the-wire Capability, grounded on devicedb's
// client/api_client.go round-robin REST client: one *http.Client per
// peer, JSON bodies, one path per RPC.
type httpCapability struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDialer returns a Dialer that reaches peers over plain HTTP/JSON
// at http://host:port, with the given per-request timeout applied to
// every RPC (the "per-call timeout" §5 calls for on peer RPCs).
func NewHTTPDialer(timeout time.Duration) Dialer {
	return func(spec openr.PeerSpec) (Capability, error) {
		return &httpCapability{
			baseURL: fmt.Sprintf("http://%s:%d", spec.Host, spec.Port),
			client:  &http.Client{Timeout: timeout},
		}, nil
	}
}

func (capability *httpCapability) do(path string, request, response interface{}) error {
	body, err := json.Marshal(request)

	if err != nil {
		return err
	}

	httpResponse, err := capability.client.Post(capability.baseURL+path, "application/json", bytes.NewReader(body))

	if err != nil {
		return err
	}

	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned status %d for %s", httpResponse.StatusCode, path)
	}

	if response == nil {
		return nil
	}

	return json.NewDecoder(httpResponse.Body).Decode(response)
}

func (capability *httpCapability) SetKeyVals(area string, keyVals map[string]openr.Record, senderID string) error {
	return capability.do("/areas/"+area+"/keys", routes.SetKeyValsRequest{KeyVals: keyVals, SenderID: senderID}, nil)
}

func (capability *httpCapability) DumpHashes(area string, prefix string) (map[string]openr.Record, error) {
	var response map[string]openr.Record

	err := capability.do("/areas/"+area+"/hashes", routes.DumpHashesRequest{Prefix: prefix}, &response)

	return response, err
}

func (capability *httpCapability) DumpKeys(area string, keys []string) (map[string]openr.Record, error) {
	var response map[string]openr.Record

	err := capability.do("/areas/"+area+"/keys/dump", routes.DumpKeysRequest{Keys: keys}, &response)

	return response, err
}

func (capability *httpCapability) SyncKeyVals(area string, selfHashes map[string]openr.Record) (map[string]openr.Record, error) {
	var response map[string]openr.Record

	err := capability.do("/areas/"+area+"/sync", routes.SyncKeyValsRequest{SelfHashes: selfHashes}, &response)

	return response, err
}

func (capability *httpCapability) SendPublication(publication openr.Publication) error {
	return capability.do("/areas/"+publication.Area+"/publications", publication, nil)
}

func (capability *httpCapability) Close() error {
	capability.client.CloseIdleConnections()
	return nil
}
