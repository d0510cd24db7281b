package cli

import (
	"time"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/client/store/memory"
)

// seedDemo fills the in-process store used with the memory:// store URL.
func seedDemo(m *memory.Store) {
	start := time.Now().UTC().Truncate(24 * time.Hour).Add(7 * 24 * time.Hour)

	m.Seed(models.TableActivityTypes,
		store.Row{"id": "corrida", "name": "Corrida", "category": models.CategoryRunning, "suor_per_minute": 2, "xp_per_minute": 1, "is_active": true},
		store.Row{"id": "caminhada", "name": "Caminhada", "category": models.CategoryWalking, "suor_per_minute": 1, "xp_per_minute": 0.5, "is_active": true},
		store.Row{"id": "pedal", "name": "Pedal", "category": models.CategoryCycling, "suor_per_minute": 1.5, "xp_per_minute": 1, "is_active": true},
		store.Row{"id": "natacao", "name": "Natação", "category": models.CategorySwimming, "suor_per_minute": 3, "xp_per_minute": 2, "is_active": false},
	)
	m.Seed(models.TableRewards,
		store.Row{"id": "garrafa", "title": "Garrafa Agita", "category": models.CategoryOther, "suor_cost": 200, "is_available": true},
		store.Row{"id": "camiseta", "title": "Camiseta Dry Fit", "category": models.CategoryRunning, "suor_cost": 600, "stock": 20, "is_available": true},
		store.Row{"id": "mochila", "title": "Mochila de Hidratação", "category": models.CategoryRunning, "suor_cost": 1500, "stock": 0, "is_available": false},
	)
	m.Seed(models.TableEvents,
		store.Row{
			"id": "corrida-parque", "title": "Corrida no Parque", "location": "Parque Ibirapuera",
			"starts_at": start.Format(time.RFC3339), "ends_at": start.Add(3 * time.Hour).Format(time.RFC3339),
			"suor_reward": 300, "max_participants": 200, "is_active": true,
		},
	)
}
