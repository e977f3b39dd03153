package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
)

type Room struct {
	ID          int64  `json:"id_consultorio"`
	Number      string `json:"numero"`
	Description string `json:"descripcion"`
	Active      bool   `json:"estado"`
}

type Dentist struct {
	ID     int64  `json:"id_odontologo"`
	UserID string `json:"id_usuario"`
	Name   string `json:"nombre"`
	Active bool   `json:"activo"`
}

type Patient struct {
	ID     int64  `json:"id_paciente"`
	UserID string `json:"id_usuario"`
	Name   string `json:"nombre"`
	Phone  string `json:"celular"`
}

// Window is a weekly working interval of a dentist. Weekday 0 is Monday.
type Window struct {
	ID        int64          `json:"id_horario"`
	DentistID int64          `json:"id_odontologo"`
	Weekday   int            `json:"dia_semana"`
	Start     calendar.Clock `json:"hora_inicio"`
	End       calendar.Clock `json:"hora_fin"`
	Active    bool           `json:"vigente"`
}

// Block closes one calendar day, either for one dentist or clinic-wide when DentistID
// is nil. Rows created together share Group.
type Block struct {
	ID        int64
	Group     uuid.UUID
	DentistID *int64
	Date      time.Time
	Recurring bool
	Reason    string
}

func (b Block) Global() bool { return b.DentistID == nil }

// BlockGroup is the user facing view of the rows sharing a Group id.
type BlockGroup struct {
	ID          uuid.UUID
	Start       time.Time
	End         time.Time
	Reason      string
	Recurring   bool
	DentistID   *int64
	DentistName *string
}
