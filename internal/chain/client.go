package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"airdropScope/internal/model"
	"airdropScope/internal/retry"
)

const (
	defaultRelayMethod  = "relay_submitCall"
	defaultPollInterval = 2 * time.Second
	defaultFinalityWait = 5 * time.Minute
)

// Config selects endpoints and finality polling behaviour.
type Config struct {
	RPCURL string
	// RelayURL is the signing relayer; empty means RPCURL.
	RelayURL        string
	RelayMethod     string
	PollInterval    time.Duration
	FinalityTimeout time.Duration
}

// Client speaks Starknet JSON-RPC for reads and a relayer endpoint for writes.
// Every error it returns is classified as transient or fatal.
type Client struct {
	rpcClient   *rpc.Client
	relayClient *rpc.Client
	cfg         Config
	logger      *zap.Logger
}

// NewClient dials the read endpoint and, if different, the relayer.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RelayMethod == "" {
		cfg.RelayMethod = defaultRelayMethod
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FinalityTimeout <= 0 {
		cfg.FinalityTimeout = defaultFinalityWait
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	relayClient := rpcClient
	if cfg.RelayURL != "" && cfg.RelayURL != cfg.RPCURL {
		relayClient, err = rpc.DialContext(ctx, cfg.RelayURL)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("dial relayer: %w", err)
		}
	}

	return &Client{
		rpcClient:   rpcClient,
		relayClient: relayClient,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Close closes the underlying RPC clients.
func (c *Client) Close() {
	if c.relayClient != nil && c.relayClient != c.rpcClient {
		c.relayClient.Close()
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

type blockID struct {
	BlockNumber uint64 `json:"block_number"`
}

type eventsFilter struct {
	FromBlock         blockID    `json:"from_block"`
	ToBlock           blockID    `json:"to_block"`
	Address           string     `json:"address"`
	Keys              [][]string `json:"keys,omitempty"`
	ChunkSize         int        `json:"chunk_size"`
	ContinuationToken string     `json:"continuation_token,omitempty"`
}

// FetchEventPage returns one page of starknet_getEvents.
func (c *Client) FetchEventPage(ctx context.Context, req model.PageRequest) (model.EventPage, error) {
	filter := eventsFilter{
		FromBlock:         blockID{BlockNumber: req.FromBlock},
		ToBlock:           blockID{BlockNumber: req.ToBlock},
		Address:           req.Address.String(),
		Keys:              feltMatrix(req.Keys),
		ChunkSize:         req.PageSize,
		ContinuationToken: req.ContinuationToken,
	}

	var page model.EventPage
	if err := c.rpcClient.CallContext(ctx, &page, "starknet_getEvents", filter); err != nil {
		return model.EventPage{}, Classify(fmt.Errorf("starknet_getEvents: %w", err))
	}
	return page, nil
}

type relayRequest struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Method             string   `json:"method"`
	Calldata           []string `json:"calldata"`
}

type relayResult struct {
	TransactionHash string `json:"transaction_hash"`
}

// Submit hands the call to the relayer, which signs and broadcasts it.
func (c *Client) Submit(ctx context.Context, call model.Call) (model.TxHandle, error) {
	req := relayRequest{
		ContractAddress:    call.Target.String(),
		EntryPointSelector: Selector(call.Method).String(),
		Method:             call.Method,
		Calldata:           feltStrings(call.Calldata),
	}

	var res relayResult
	if err := c.relayClient.CallContext(ctx, &res, c.cfg.RelayMethod, req); err != nil {
		return "", Classify(fmt.Errorf("%s: %w", c.cfg.RelayMethod, err))
	}
	if res.TransactionHash == "" {
		return "", retry.Fatal(fmt.Errorf("%s: empty transaction hash", c.cfg.RelayMethod))
	}
	return model.TxHandle(res.TransactionHash), nil
}

type txStatus struct {
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status"`
	FailureReason   string `json:"failure_reason"`
}

// WaitForFinality polls the transaction status until it is accepted,
// rejected, or the finality timeout passes. A timeout is transient.
func (c *Client) WaitForFinality(ctx context.Context, handle model.TxHandle) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.FinalityTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		done, err := c.checkStatus(waitCtx, handle)
		if done {
			return err
		}
		if err != nil {
			c.logger.Debug("transaction status poll failed", zap.String("tx_hash", string(handle)), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.Transient(fmt.Errorf("transaction %s not final after %s", handle, c.cfg.FinalityTimeout))
		case <-ticker.C:
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, handle model.TxHandle) (bool, error) {
	var status txStatus
	if err := c.rpcClient.CallContext(ctx, &status, "starknet_getTransactionStatus", string(handle)); err != nil {
		classified := Classify(fmt.Errorf("starknet_getTransactionStatus: %w", err))
		if retry.IsTransient(classified) || ctx.Err() != nil {
			return false, classified
		}
		return true, classified
	}

	if status.ExecutionStatus == "REVERTED" {
		return true, retry.Fatal(fmt.Errorf("transaction %s reverted: %s", handle, status.FailureReason))
	}
	switch status.FinalityStatus {
	case "ACCEPTED_ON_L2", "ACCEPTED_ON_L1":
		return true, nil
	case "REJECTED":
		return true, retry.Fatal(fmt.Errorf("transaction %s rejected: %s", handle, status.FailureReason))
	default:
		return false, nil
	}
}

func feltStrings(felts []model.Felt) []string {
	out := make([]string, 0, len(felts))
	for _, f := range felts {
		out = append(out, f.String())
	}
	return out
}

func feltMatrix(keys [][]model.Felt) [][]string {
	if len(keys) == 0 {
		return nil
	}
	out := make([][]string, 0, len(keys))
	for _, position := range keys {
		out = append(out, feltStrings(position))
	}
	return out
}
