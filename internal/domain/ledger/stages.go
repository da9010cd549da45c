package ledger

import "github.com/jhoicas/pos-ledger/internal/domain"

// Etapas del pedido en su único orden válido.
const (
	StageUpcoming   = "Upcoming"
	StageConfirmed  = "Confirmed"
	StageDispatched = "Packed & Dispatched"
	StageCompleted  = "Completed"
)

var orderStages = []string{StageUpcoming, StageConfirmed, StageDispatched, StageCompleted}

// OrderStages devuelve una copia de la secuencia canónica.
func OrderStages() []string {
	out := make([]string, len(orderStages))
	copy(out, orderStages)
	return out
}

// StageIndex posición de la etapa en la secuencia, -1 si no existe.
func StageIndex(stage string) int {
	for i, s := range orderStages {
		if s == stage {
			return i
		}
	}
	return -1
}

// NextStage devuelve la etapa siguiente. terminal=true cuando stage ya es la última (sin siguiente).
func NextStage(stage string) (next string, terminal bool, err error) {
	i := StageIndex(stage)
	if i < 0 {
		return "", false, domain.NewValidation("status", "etapa desconocida: "+stage)
	}
	if i == len(orderStages)-1 {
		return "", true, nil
	}
	return orderStages[i+1], false, nil
}
