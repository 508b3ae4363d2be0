package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrConfigLoad      = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect = "DATABASE_CONNECT_ERROR"
	ErrLedgerFetch     = "LEDGER_FETCH_ERROR"
	ErrTxParse         = "TX_PARSE_ERROR"
	ErrBalanceAgg      = "BALANCE_AGGREGATION_ERROR"
	ErrWalletStats     = "WALLET_STATS_ERROR"
	ErrDataIntegrity   = "DATA_INTEGRITY_ERROR"
	ErrReclassify      = "RECLASSIFY_ERROR"
)
