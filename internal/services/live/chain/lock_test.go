package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type callArgs struct {
	To    string `json:"to"`
	Input string `json:"input"`
	Data  string `json:"data"`
}

// lockNode answers eth_chainId and eth_call for the two lock methods.
type lockNode struct {
	mu      sync.Mutex
	chainID uint64
	valid   bool
	manager bool
	empty   bool
	calls   []string
}

func (n *lockNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if req.Method == "eth_chainId" {
		n.mu.Lock()
		n.calls = append(n.calls, req.Method)
		id := n.chainID
		n.mu.Unlock()
		if id == 0 {
			writeRPC(w, req.ID, nil, "method not supported")
			return
		}
		writeRPC(w, req.ID, hexutil.EncodeUint64(id), "")
		return
	}
	if req.Method != "eth_call" || len(req.Params) == 0 {
		writeRPC(w, req.ID, nil, "method not supported")
		return
	}
	var args callArgs
	if err := json.Unmarshal(req.Params[0], &args); err != nil {
		writeRPC(w, req.ID, nil, err.Error())
		return
	}
	payload := args.Input
	if payload == "" {
		payload = args.Data
	}
	input, err := hexutil.Decode(payload)
	if err != nil || len(input) < 4 {
		writeRPC(w, req.ID, nil, "bad input")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.empty {
		writeRPC(w, req.ID, "0x", "")
		return
	}
	for _, name := range []string{methodHasValidKey, methodIsLockManager} {
		method := lockABI.Methods[name]
		if !bytes.Equal(input[:4], method.ID) {
			continue
		}
		n.calls = append(n.calls, name)
		result := n.valid
		if name == methodIsLockManager {
			result = n.manager
		}
		out, err := method.Outputs.Pack(result)
		if err != nil {
			writeRPC(w, req.ID, nil, err.Error())
			return
		}
		writeRPC(w, req.ID, hexutil.Encode(out), "")
		return
	}
	writeRPC(w, req.ID, nil, "execution reverted")
}

func writeRPC(w http.ResponseWriter, id json.RawMessage, result any, message string) {
	body := map[string]any{"jsonrpc": "2.0", "id": id}
	if message != "" {
		body["error"] = map[string]any{"code": -32000, "message": message}
	} else {
		body["result"] = result
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestDialEthereumReadsLock(t *testing.T) {
	node := &lockNode{chainID: 31337, valid: false, manager: true}
	server := httptest.NewServer(node)
	defer server.Close()

	checker := NewChecker(Config{Chain: "localhost", RPCURL: server.URL, AllowManagers: true})
	decision, err := checker.Check(context.Background(), testLock, testOwner)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Valid || !decision.IsManager {
		t.Fatalf("decision = %+v", decision)
	}
	if len(node.calls) != 3 || node.calls[0] != "eth_chainId" || node.calls[1] != methodHasValidKey || node.calls[2] != methodIsLockManager {
		t.Fatalf("calls = %v", node.calls)
	}
}

func TestDialEthereumEmptyResultFails(t *testing.T) {
	server := httptest.NewServer(&lockNode{empty: true})
	defer server.Close()

	reader, err := DialEthereum(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer reader.Close()
	if _, err := reader.HasValidKey(context.Background(), common.HexToAddress(testLock), common.HexToAddress(testOwner)); err == nil {
		t.Fatal("expected decode error for empty result")
	}
}

func TestDialEthereumRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		writeRPC(w, req.ID, nil, "execution reverted")
	}))
	defer server.Close()

	reader, err := DialEthereum(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer reader.Close()
	if _, err := reader.IsLockManager(context.Background(), common.HexToAddress(testLock), common.HexToAddress(testOwner)); err == nil {
		t.Fatal("expected rpc error")
	}
}

func TestCheckFailsWhenNodeServesAnotherChain(t *testing.T) {
	tests := []struct {
		name    string
		chainID uint64
	}{
		{name: "mainnet node", chainID: 1},
		{name: "no eth_chainId", chainID: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &lockNode{chainID: tt.chainID, valid: true}
			server := httptest.NewServer(node)
			defer server.Close()

			checker := NewChecker(Config{Chain: "polygon", RPCURL: server.URL})
			decision, err := checker.Check(context.Background(), testLock, testOwner)
			if apperrors.CodeOf(err) != apperrors.CodeChainReadFailed {
				t.Fatalf("err = %v, want %s", err, apperrors.CodeChainReadFailed)
			}
			if decision.Valid {
				t.Fatalf("decision = %+v", decision)
			}
			for _, call := range node.calls {
				if call == methodHasValidKey {
					t.Fatalf("key read happened on wrong chain: %v", node.calls)
				}
			}
		})
	}
}
