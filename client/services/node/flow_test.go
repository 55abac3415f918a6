package node_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lidofinance/qvault/client/api"
	"github.com/lidofinance/qvault/client/api/dto"
	"github.com/lidofinance/qvault/client/api/http_api/responses"
	"github.com/lidofinance/qvault/client/config"
	"github.com/lidofinance/qvault/client/modules/keystore"
	"github.com/lidofinance/qvault/client/modules/state"
	"github.com/lidofinance/qvault/client/repositories/action"
	"github.com/lidofinance/qvault/client/services"
	"github.com/lidofinance/qvault/client/services/node"
	"github.com/lidofinance/qvault/executor/noop"
	"github.com/lidofinance/qvault/ledger"
	"github.com/lidofinance/qvault/storage"
	"github.com/lidofinance/qvault/storage/file_storage"
)

var (
	testTarget  = common.HexToAddress("0x00000000219ab540356cBB839Cbe05303d7705Fa")
	depositFrom = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

var depositProcessedRegexp = regexp.MustCompile(`(?m)\[node_\d] Successfully processed message with offset \d{0,3}, type deposit_notify`)

type testNode struct {
	userName   string
	node       node.NodeService
	nodeCancel context.CancelFunc
	nodeLogger *savingLogger
	storage    storage.Storage
	keyPair    *keystore.KeyPair
	executor   ledger.Executor
	cfg        *config.Config
	listenAddr string
}

type ActionsResponse struct {
	ErrorMessage string          `json:"error_message,omitempty"`
	Result       []ledger.Action `json:"result"`
}

type savingLogger struct {
	userName string
	logs     []string
}

func (l *savingLogger) Log(format string, args ...interface{}) {
	str := fmt.Sprintf("[%s] %s\n", l.userName, fmt.Sprintf(format, args...))
	l.logs = append(l.logs, str)
	fmt.Print(str)
}

func (l *savingLogger) checkLogsWithRegexp(re *regexp.Regexp, batchSize int) (matches int) {
	logs := l.logs[len(l.logs)-batchSize:]
	for _, str := range logs {
		if len(re.FindString(str)) > 0 {
			matches++
		}
	}

	return matches
}

// countingExecutor fails the first failures dispatches and records the calls
// that went through.
type countingExecutor struct {
	failures int
	calls    int
	target   common.Address
	value    *big.Int
	payload  []byte
}

var _ ledger.Executor = (*countingExecutor)(nil)

func (e *countingExecutor) Dispatch(target common.Address, value *big.Int, payload []byte) error {
	if e.failures > 0 {
		e.failures--
		return errors.New("the chain is down")
	}

	e.calls++
	e.target = target
	e.value = new(big.Int).Set(value)
	e.payload = append([]byte(nil), payload...)
	return nil
}

// initNodes spins up a full signer set sharing one append-only log. The first
// node gets dispatchExec; the others acknowledge executions through the noop
// executor, the way replica daemons run in production.
func initNodes(numNodes int, startingPort int, storagePath string, topic string, dispatchExec ledger.Executor) (nodes []*testNode, err error) {
	keyPairs := make([]*keystore.KeyPair, numNodes)
	signers := make([]string, numNodes)
	for nodeID := 0; nodeID < numNodes; nodeID++ {
		keyPairs[nodeID] = keystore.NewKeyPair()
		signers[nodeID] = keyPairs[nodeID].Address().Hex()
	}

	nodes = make([]*testNode, numNodes)
	for nodeID := 0; nodeID < numNodes; nodeID++ {
		var ctx, cancel = context.WithCancel(context.Background())
		var userName = fmt.Sprintf("node_%d", nodeID)
		var nodeState, err = state.NewLevelDBState(fmt.Sprintf("/tmp/qvault_flow_node_%d_state", nodeID), topic)
		if err != nil {
			return nodes, fmt.Errorf("node %d failed to init state: %v\n", nodeID, err)
		}

		stg, err := file_storage.NewFileStorage(storagePath, storagePath+"_lock")
		if err != nil {
			return nodes, fmt.Errorf("node %d failed to init storage: %v\n", nodeID, err)
		}

		keyStore, err := keystore.NewLevelDBKeyStore(userName, fmt.Sprintf("/tmp/qvault_flow_node_%d_key_store", nodeID))
		if err != nil {
			return nodes, fmt.Errorf("Failed to init key store: %v", err)
		}

		if err := keyStore.PutKeys(userName, keyPairs[nodeID]); err != nil {
			return nodes, fmt.Errorf("Failed to PutKeys: %v\n", err)
		}

		actionRepo, err := action.NewActionRepo(nodeState, topic)
		if err != nil {
			return nodes, fmt.Errorf("node %d failed to init action repo: %v\n", nodeID, err)
		}

		logger := &savingLogger{userName: userName}

		var exec ledger.Executor = noop.NewExecutor(logger)
		if nodeID == 0 {
			exec = dispatchExec
		}

		sp := &services.ServiceProvider{}
		sp.SetLogger(logger)
		sp.SetState(nodeState)
		sp.SetStorage(stg)
		sp.SetKeyStore(keyStore)
		sp.SetExecutor(exec)
		sp.SetActionRepo(actionRepo)

		cfg := &config.Config{
			Username: userName,
			Signers:  signers,
			HttpApiConfig: &config.HttpApiConfig{
				Host: "localhost",
				Port: startingPort + nodeID,
			},
			KafkaStorageConfig: &config.KafkaStorageConfig{
				Topic: topic,
			},
		}

		nodeService, err := node.NewNode(ctx, cfg, sp)
		if err != nil {
			return nodes, fmt.Errorf("node %d failed to init node: %v\n", nodeID, err)
		}

		nodes[nodeID] = &testNode{
			userName:   userName,
			node:       nodeService,
			nodeCancel: cancel,
			nodeLogger: logger,
			storage:    stg,
			keyPair:    keyPairs[nodeID],
			executor:   exec,
			cfg:        cfg,
			listenAddr: fmt.Sprintf("localhost:%d", startingPort+nodeID),
		}
	}

	return nodes, err
}

// syncNodes replays the whole shared log into every node and collects the
// processing errors per node. Messages below a node's watermark are skipped,
// so replaying from offset zero is safe.
func syncNodes(nodes []*testNode) [][]error {
	errs := make([][]error, len(nodes))
	for nodeID, n := range nodes {
		messages, err := n.storage.GetMessages(0)
		if err != nil {
			errs[nodeID] = append(errs[nodeID], fmt.Errorf("failed to get messages: %w", err))
			continue
		}
		for _, message := range messages {
			if err := n.node.ProcessMessage(message); err != nil {
				errs[nodeID] = append(errs[nodeID], err)
			}
		}
	}

	return errs
}

func syncNodesStrict(nodes []*testNode) error {
	for nodeID, nodeErrs := range syncNodes(nodes) {
		if len(nodeErrs) != 0 {
			return fmt.Errorf("node %d failed to sync: %v", nodeID, nodeErrs)
		}
	}
	return nil
}

func postCommand(url string, body interface{}) error {
	bodyBz, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(bodyBz))
	if err != nil {
		return fmt.Errorf("failed to post command %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body %v", err)
	}

	var response responses.BaseResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %v", err)
	}
	if response.ErrorMessage != "" {
		return fmt.Errorf("failed to post command: %s", response.ErrorMessage)
	}
	return nil
}

func getActions(url string) (*ActionsResponse, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get actions %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body %v", err)
	}

	var response ActionsResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	if response.ErrorMessage != "" {
		return nil, fmt.Errorf("failed to get actions: %s", response.ErrorMessage)
	}
	return &response, nil
}

// actionOnEveryNode fetches the single expected action from each node over
// HTTP, in node order.
func actionOnEveryNode(nodes []*testNode) ([]ledger.Action, error) {
	actions := make([]ledger.Action, len(nodes))
	for nodeID, n := range nodes {
		actionsResponse, err := getActions(fmt.Sprintf("http://%s/getActions", n.listenAddr))
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", nodeID, err)
		}
		if len(actionsResponse.Result) != 1 {
			return nil, fmt.Errorf("node %d: expected one action, got %d", nodeID, len(actionsResponse.Result))
		}
		actions[nodeID] = actionsResponse.Result[0]
	}
	return actions, nil
}

func startServers(nodes []*testNode) context.CancelFunc {
	serverCtx, serverCancel := context.WithCancel(context.Background())
	for nodeID, n := range nodes {
		go func(nodeID int, n *testNode) {
			if err := api.Run(serverCtx, n.cfg, n.node); err != nil && err != http.ErrServerClosed {
				panic(fmt.Sprintf("failed to start HTTP server for nodeID #%d: %v\n", nodeID, err))
			}
		}(nodeID, n)
		time.Sleep(1 * time.Second)
		log.Printf("node %d started...\n", nodeID)
	}

	return serverCancel
}

func startPolling(nodes []*testNode) {
	for nodeID, n := range nodes {
		go func(nodeID int, n *testNode) {
			if err := n.node.Poll(); err != nil {
				panic(fmt.Sprintf("node %d poller failed: %v\n", nodeID, err))
			}
		}(nodeID, n)
	}
}

func RemoveContents(dir, mask string) error {
	files, err := filepath.Glob(filepath.Join(dir, mask))
	if err != nil {
		return err
	}
	for _, file := range files {
		err = os.RemoveAll(file)
		if err != nil {
			return err
		}
	}
	return nil
}

func TestStandardFlow(t *testing.T) {
	_ = RemoveContents("/tmp", "qvault_flow_*")
	defer func() { _ = RemoveContents("/tmp", "qvault_flow_*") }()

	numNodes := 3
	startingPort := 8085
	topic := "test_topic"
	storagePath := "/tmp/qvault_flow_storage"
	dispatchExec := &countingExecutor{}
	nodes, err := initNodes(numNodes, startingPort, storagePath, topic, dispatchExec)
	if err != nil {
		t.Fatalf("Failed to init nodes, err: %v", err)
	}

	serverCancel := startServers(nodes)

	log.Println("Propose an action through node_0")
	if err := postCommand(fmt.Sprintf("http://%s/propose", nodes[0].listenAddr), map[string]interface{}{
		"target":  testTarget.Hex(),
		"value":   "42",
		"payload": []byte("ping()"),
	}); err != nil {
		t.Fatal(err.Error())
	}
	if err := syncNodesStrict(nodes); err != nil {
		t.Fatal(err.Error())
	}

	actions, err := actionOnEveryNode(nodes)
	if err != nil {
		t.Fatal(err.Error())
	}
	for nodeID, act := range actions {
		if act.Target != testTarget || act.Value.Cmp(big.NewInt(42)) != 0 || string(act.Payload) != "ping()" {
			t.Fatalf("node %d: the proposed action is corrupt: %+v", nodeID, act)
		}
		if act.Status != ledger.ActionPending || act.ConfirmationCount != 0 {
			t.Fatalf("node %d: expected a fresh pending action, got %s with %d confirmations",
				nodeID, act.Status, act.ConfirmationCount)
		}
	}

	log.Println("Confirm the action, then think better of it")
	if err := postCommand(fmt.Sprintf("http://%s/confirm", nodes[0].listenAddr), map[string]uint64{"actionID": 0}); err != nil {
		t.Fatal(err.Error())
	}
	if err := syncNodesStrict(nodes); err != nil {
		t.Fatal(err.Error())
	}

	actions, err = actionOnEveryNode(nodes)
	if err != nil {
		t.Fatal(err.Error())
	}
	for nodeID, act := range actions {
		if act.ConfirmationCount != 1 || !act.Confirmations[nodes[0].keyPair.Address()] {
			t.Fatalf("node %d: expected a single confirmation by node_0, got %+v", nodeID, act.Confirmations)
		}
	}

	if err := postCommand(fmt.Sprintf("http://%s/revoke", nodes[0].listenAddr), map[string]uint64{"actionID": 0}); err != nil {
		t.Fatal(err.Error())
	}
	if err := syncNodesStrict(nodes); err != nil {
		t.Fatal(err.Error())
	}

	actions, err = actionOnEveryNode(nodes)
	if err != nil {
		t.Fatal(err.Error())
	}
	for nodeID, act := range actions {
		if act.ConfirmationCount != 0 {
			t.Fatalf("node %d: expected no confirmations after the revoke, got %d", nodeID, act.ConfirmationCount)
		}
	}

	log.Println("Reach the quorum")
	if err := postCommand(fmt.Sprintf("http://%s/confirm", nodes[0].listenAddr), map[string]uint64{"actionID": 0}); err != nil {
		t.Fatal(err.Error())
	}
	if err := syncNodesStrict(nodes); err != nil {
		t.Fatal(err.Error())
	}
	if err := postCommand(fmt.Sprintf("http://%s/confirm", nodes[2].listenAddr), map[string]uint64{"actionID": 0}); err != nil {
		t.Fatal(err.Error())
	}
	if err := syncNodesStrict(nodes); err != nil {
		t.Fatal(err.Error())
	}

	actions, err = actionOnEveryNode(nodes)
	if err != nil {
		t.Fatal(err.Error())
	}
	for nodeID, act := range actions {
		if act.Status != ledger.ActionExecuted || act.ConfirmationCount != 2 {
			t.Fatalf("node %d: expected an executed action, got %s with %d confirmations",
				nodeID, act.Status, act.ConfirmationCount)
		}
	}
	for nodeID, n := range nodes {
		confirmations, err := n.node.GetConfirmations(&dto.ActionIdDTO{ActionID: 0})
		if err != nil {
			t.Fatalf("node %d: failed to get confirmations: %v", nodeID, err)
		}
		if len(confirmations) != 2 || confirmations[0] != nodes[0].keyPair.Address() ||
			confirmations[1] != nodes[2].keyPair.Address() {
			t.Fatalf("node %d: unexpected confirmation set: %v", nodeID, confirmations)
		}
	}

	if dispatchExec.calls != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", dispatchExec.calls)
	}
	if dispatchExec.target != testTarget || dispatchExec.value.Cmp(big.NewInt(42)) != 0 ||
		string(dispatchExec.payload) != "ping()" {
		t.Fatalf("the dispatched call does not match the proposed action")
	}
	for nodeID := 1; nodeID < numNodes; nodeID++ {
		dispatches := nodes[nodeID].executor.(*noop.Executor).Dispatches()
		if len(dispatches) != 1 {
			t.Fatalf("node %d: expected one acknowledged execution, got %d", nodeID, len(dispatches))
		}
	}

	log.Println("Notify a deposit and let the nodes poll it")
	if err := postCommand(fmt.Sprintf("http://%s/deposit", nodes[1].listenAddr), map[string]string{
		"from":  depositFrom.Hex(),
		"value": "1000",
	}); err != nil {
		t.Fatal(err.Error())
	}

	// Polling starts with the offset cursor still at zero, so every node
	// replays the whole log: the five applied commands are skipped by the
	// watermark and only the deposit goes through.
	startPolling(nodes)
	time.Sleep(3 * time.Second)
	for _, n := range nodes {
		n.nodeCancel()
	}
	time.Sleep(time.Second)

	for nodeID, n := range nodes {
		offset, err := n.node.GetStateOffset()
		if err != nil {
			t.Fatalf("node %d: failed to get offset: %v", nodeID, err)
		}
		if offset != 6 {
			t.Fatalf("node %d: expected offset 6 after polling, got %d", nodeID, offset)
		}

		if matches := n.nodeLogger.checkLogsWithRegexp(depositProcessedRegexp, 20); matches != 1 {
			t.Fatalf("not enough checks: %d", matches)
		}

		records, err := n.node.GetAuditLog()
		if err != nil {
			t.Fatalf("node %d: failed to get audit log: %v", nodeID, err)
		}
		if len(records) != 7 {
			t.Fatalf("node %d: expected 7 audit records, got %d", nodeID, len(records))
		}
		last := records[len(records)-1]
		if last.Type != ledger.EventDepositReceived || last.From != depositFrom ||
			last.Value.Cmp(big.NewInt(1000)) != 0 {
			t.Fatalf("node %d: the deposit record is corrupt: %+v", nodeID, last)
		}

		actionRecords, err := n.node.GetActionAuditLog(&dto.ActionIdDTO{ActionID: 0})
		if err != nil {
			t.Fatalf("node %d: failed to get action audit log: %v", nodeID, err)
		}
		if len(actionRecords) != 6 {
			t.Fatalf("node %d: expected 6 action audit records, got %d", nodeID, len(actionRecords))
		}
	}

	serverCancel()
}

func TestDispatchFailureFlow(t *testing.T) {
	_ = RemoveContents("/tmp", "qvault_flow_*")
	defer func() { _ = RemoveContents("/tmp", "qvault_flow_*") }()

	numNodes := 3
	topic := "test_topic"
	storagePath := "/tmp/qvault_flow_storage"
	dispatchExec := &countingExecutor{failures: 1}
	nodes, err := initNodes(numNodes, 8090, storagePath, topic, dispatchExec)
	if err != nil {
		t.Fatalf("Failed to init nodes, err: %v", err)
	}

	if err := nodes[0].node.ProposeAction(&dto.ProposeActionDTO{
		Target:  testTarget,
		Value:   big.NewInt(500),
		Payload: []byte("pause()"),
	}); err != nil {
		t.Fatalf("failed to propose action: %v", err)
	}
	if err := nodes[1].node.ConfirmAction(&dto.ActionIdDTO{ActionID: 0}); err != nil {
		t.Fatalf("failed to confirm action: %v", err)
	}
	if err := syncNodesStrict(nodes); err != nil {
		t.Fatal(err.Error())
	}

	// The second confirmation reaches the quorum, but the chain is down for
	// the dispatching node: it must roll the confirmation back while the
	// acknowledging nodes execute fine.
	if err := nodes[2].node.ConfirmAction(&dto.ActionIdDTO{ActionID: 0}); err != nil {
		t.Fatalf("failed to confirm action: %v", err)
	}

	syncErrs := syncNodes(nodes)
	var dispatchErr *ledger.DispatchError
	if len(syncErrs[0]) != 1 || !errors.As(syncErrs[0][0], &dispatchErr) {
		t.Fatalf("expected a dispatch failure on the dispatching node, got: %v", syncErrs[0])
	}
	if dispatchErr.ActionID != 0 {
		t.Fatalf("dispatch failure reported for action %d", dispatchErr.ActionID)
	}
	for nodeID := 1; nodeID < numNodes; nodeID++ {
		if len(syncErrs[nodeID]) != 0 {
			t.Fatalf("node %d failed to sync: %v", nodeID, syncErrs[nodeID])
		}
	}

	act, err := nodes[0].node.GetActionByID(&dto.ActionIdDTO{ActionID: 0})
	if err != nil {
		t.Fatalf("failed to get action: %v", err)
	}
	if act.Status != ledger.ActionPending || act.ConfirmationCount != 1 {
		t.Fatalf("expected the rolled back action to stay pending with one confirmation, got %s with %d",
			act.Status, act.ConfirmationCount)
	}
	if !act.Confirmations[nodes[1].keyPair.Address()] {
		t.Fatalf("the first confirmation must survive the rollback")
	}
	for nodeID := 1; nodeID < numNodes; nodeID++ {
		act, err := nodes[nodeID].node.GetActionByID(&dto.ActionIdDTO{ActionID: 0})
		if err != nil {
			t.Fatalf("node %d: failed to get action: %v", nodeID, err)
		}
		if act.Status != ledger.ActionExecuted {
			t.Fatalf("node %d: expected an executed action, got %s", nodeID, act.Status)
		}
	}

	// The re-sent confirmation executes the action on the dispatching node
	// and bounces off the nodes that already counted it.
	if err := nodes[2].node.ConfirmAction(&dto.ActionIdDTO{ActionID: 0}); err != nil {
		t.Fatalf("failed to confirm action: %v", err)
	}

	syncErrs = syncNodes(nodes)
	if len(syncErrs[0]) != 0 {
		t.Fatalf("dispatching node failed to recover: %v", syncErrs[0])
	}
	for nodeID := 1; nodeID < numNodes; nodeID++ {
		if len(syncErrs[nodeID]) != 1 || !errors.Is(syncErrs[nodeID][0], ledger.ErrAlreadyConfirmed) {
			t.Fatalf("node %d: expected a duplicate confirmation rejection, got: %v", nodeID, syncErrs[nodeID])
		}
	}

	if dispatchExec.calls != 1 {
		t.Fatalf("expected exactly one successful dispatch, got %d", dispatchExec.calls)
	}
	if dispatchExec.value.Cmp(big.NewInt(500)) != 0 || string(dispatchExec.payload) != "pause()" {
		t.Fatalf("the dispatched call does not match the proposed action")
	}

	wantTypes := []ledger.EventType{
		ledger.EventActionProposed,
		ledger.EventActionConfirmed,
		ledger.EventActionConfirmed,
		ledger.EventActionExecuted,
	}
	for nodeID, n := range nodes {
		act, err := n.node.GetActionByID(&dto.ActionIdDTO{ActionID: 0})
		if err != nil {
			t.Fatalf("node %d: failed to get action: %v", nodeID, err)
		}
		if act.Status != ledger.ActionExecuted || act.ConfirmationCount != 2 {
			t.Fatalf("node %d: the nodes did not converge: %s with %d confirmations",
				nodeID, act.Status, act.ConfirmationCount)
		}

		records, err := n.node.GetAuditLog()
		if err != nil {
			t.Fatalf("node %d: failed to get audit log: %v", nodeID, err)
		}
		if len(records) != len(wantTypes) {
			t.Fatalf("node %d: expected %d audit records, got %d", nodeID, len(wantTypes), len(records))
		}
		for i, record := range records {
			if record.Type != wantTypes[i] {
				t.Fatalf("node %d: record %d is %s, want %s", nodeID, i, record.Type, wantTypes[i])
			}
		}
	}

	for _, n := range nodes {
		n.nodeCancel()
	}
}
