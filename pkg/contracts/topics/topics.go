package topics

const (
	// Ciclo de vida da aposta vista pelo cliente
	BetSubmitted  = "bet_submitted"
	BetSaveFailed = "bet_save_failed"
	BetReconciled = "bet_reconciled"

	// DLQ
	BetReconcileDLQ = "bet_reconcile_dlq"
)
