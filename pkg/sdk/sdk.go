// Package sdk is a thin Go client for the cloudnode HTTP side channel and
// the dashboard socket.
package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/datafed/cloudnode/pkg/session"
)

const CTJSON string = "application/json"

type SDK interface {
	// SessionStatus returns the live session state for a repo.
	//
	// example:
	//  snap, _ := sdk.SessionStatus("repo-1")
	//  fmt.Println(snap)
	SessionStatus(repoID string) (session.Snapshot, error)

	// ResetSession force-stops whatever session a repo is running.
	//
	// example:
	//  _ = sdk.ResetSession("repo-1")
	ResetSession(repoID string) error

	// SetRepoKey provisions the API key nodes must present when registering
	// under a repo.
	//
	// example:
	//  _ = sdk.SetRepoKey("repo-1", "s3cret")
	SetRepoKey(repoID, key string) error

	// Dashboard opens a dashboard socket registered under the given repo.
	//
	// example:
	//  dash, _ := sdk.Dashboard("repo-1", "s3cret")
	//  defer dash.Close()
	Dashboard(repoID, apiKey string) (*Dashboard, error)
}

type cnSDK struct {
	serverURL string
	client    *http.Client
}

type Config struct {
	ServerURL       string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &cnSDK{
		serverURL: cfg.ServerURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *cnSDK) SessionStatus(repoID string) (session.Snapshot, error) {
	url := sdk.serverURL + "/sessions/" + repoID

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return session.Snapshot{}, err
	}

	var snap session.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return session.Snapshot{}, err
	}

	return snap, nil
}

func (sdk *cnSDK) ResetSession(repoID string) error {
	url := sdk.serverURL + "/sessions/" + repoID + "/reset"

	_, err := sdk.processRequest(http.MethodPost, url, nil, http.StatusOK)

	return err
}

func (sdk *cnSDK) SetRepoKey(repoID, key string) error {
	data, err := json.Marshal(map[string]string{"api_key": key})
	if err != nil {
		return err
	}
	url := sdk.serverURL + "/repos/" + repoID + "/key"

	_, err = sdk.processRequest(http.MethodPut, url, data, http.StatusCreated)

	return err
}

func (sdk *cnSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}
