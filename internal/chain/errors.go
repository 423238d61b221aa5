package chain

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"

	"airdropScope/internal/retry"
)

// JSON-RPC error codes that are worth retrying.
const (
	codeLimitExceeded    = -32005
	codeInternalError    = -32603
	codeTxnHashNotFound  = 29
	codeTooManyRequests  = 429
	codeTemporaryFailure = -32097
)

// Classify marks err as transient or fatal based on the transport and
// JSON-RPC error code. Already classified errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if retry.IsClassified(err) {
		return err
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
			return retry.Transient(err)
		}
		return retry.Fatal(err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeLimitExceeded, codeInternalError, codeTxnHashNotFound, codeTooManyRequests, codeTemporaryFailure:
			return retry.Transient(err)
		default:
			return retry.Fatal(err)
		}
	}

	if retry.IsRecoverable(err) {
		return retry.Transient(err)
	}
	return retry.Fatal(err)
}
