package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics agrupa os collectors usados pelo núcleo de apostas
// Registrados no Registerer informado; com nil ficam soltos (útil em testes)
type Metrics struct {
	RPCAttempts      *prometheus.CounterVec // endpoint, outcome
	RPCFailovers     prometheus.Counter
	BetOutcomes      *prometheus.CounterVec // status
	AuthTransitions  *prometheus.CounterVec // state
	Confirmations    *prometheus.CounterVec // result
	ReconcileResults *prometheus.CounterVec // status
	ProxyRequests    *prometheus.CounterVec // method, code
	OutboxIngest     *prometheus.CounterVec // phase
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_rpc_attempts_total", Help: "tentativas de chamada RPC por endpoint e resultado",
		}, []string{"endpoint", "outcome"}),
		RPCFailovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "battle_rpc_failovers_total", Help: "trocas de endpoint RPC corrente",
		}),
		BetOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_bet_outcomes_total", Help: "status terminais de submissão de aposta",
		}, []string{"status"}),
		AuthTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_auth_transitions_total", Help: "transições da máquina de autenticação",
		}, []string{"state"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_tx_confirmations_total", Help: "resultado da checagem leve de confirmação",
		}, []string{"result"}),
		ReconcileResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_reconcile_results_total", Help: "resultado da reconciliação de apostas não gravadas",
		}, []string{"status"}),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_rpc_proxy_requests_total", Help: "requisições no proxy RPC por método e status",
		}, []string{"method", "code"}),
		OutboxIngest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_outbox_ingest_total", Help: "mensagens bet_save_failed consumidas por fase",
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RPCAttempts, m.RPCFailovers, m.BetOutcomes, m.AuthTransitions,
			m.Confirmations, m.ReconcileResults, m.ProxyRequests, m.OutboxIngest,
		)
	}
	return m
}

// OrDiscard devolve m ou um conjunto não registrado quando m é nil
func OrDiscard(m *Metrics) *Metrics {
	if m == nil {
		return New(nil)
	}
	return m
}
