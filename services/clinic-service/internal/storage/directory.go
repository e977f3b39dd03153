package storage

import (
	"context"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

// DirectoryRepository reads the room, dentist and patient directories. Their CRUD is
// owned elsewhere; this service only reads them and toggles the active flags.
type DirectoryRepository struct {
	conn db.Conn
}

func NewDirectoryRepository(conn db.Conn) *DirectoryRepository {
	return &DirectoryRepository{conn: conn}
}

func (r *DirectoryRepository) Room(ctx context.Context, q db.Querier, id int64) (model.Room, error) {
	var room model.Room
	err := q.QueryRow(ctx, `
		SELECT id_consultorio, numero, descripcion, activo
		FROM consultorios
		WHERE id_consultorio = $1
	`, id).Scan(&room.ID, &room.Number, &room.Description, &room.Active)
	if err != nil {
		return model.Room{}, notFound(err)
	}
	return room, nil
}

// LockRoom loads a room and holds its row lock, serialising bulk operations on it.
func (r *DirectoryRepository) LockRoom(ctx context.Context, q db.Querier, id int64) (model.Room, error) {
	var room model.Room
	err := q.QueryRow(ctx, `
		SELECT id_consultorio, numero, descripcion, activo
		FROM consultorios
		WHERE id_consultorio = $1
		FOR UPDATE
	`, id).Scan(&room.ID, &room.Number, &room.Description, &room.Active)
	if err != nil {
		return model.Room{}, notFound(err)
	}
	return room, nil
}

func (r *DirectoryRepository) SetRoomActive(ctx context.Context, q db.Querier, id int64, active bool) error {
	tag, err := q.Exec(ctx, `UPDATE consultorios SET activo = $2 WHERE id_consultorio = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DirectoryRepository) Dentist(ctx context.Context, q db.Querier, id int64) (model.Dentist, error) {
	var d model.Dentist
	err := q.QueryRow(ctx, `
		SELECT id_odontologo, id_usuario, nombre, activo
		FROM odontologos
		WHERE id_odontologo = $1
	`, id).Scan(&d.ID, &d.UserID, &d.Name, &d.Active)
	if err != nil {
		return model.Dentist{}, notFound(err)
	}
	return d, nil
}

// LockDentist loads a dentist and holds its row lock. Window edits and bulk
// operations of the same dentist queue behind it.
func (r *DirectoryRepository) LockDentist(ctx context.Context, q db.Querier, id int64) (model.Dentist, error) {
	var d model.Dentist
	err := q.QueryRow(ctx, `
		SELECT id_odontologo, id_usuario, nombre, activo
		FROM odontologos
		WHERE id_odontologo = $1
		FOR UPDATE
	`, id).Scan(&d.ID, &d.UserID, &d.Name, &d.Active)
	if err != nil {
		return model.Dentist{}, notFound(err)
	}
	return d, nil
}

func (r *DirectoryRepository) SetDentistActive(ctx context.Context, q db.Querier, id int64, active bool) error {
	tag, err := q.Exec(ctx, `UPDATE odontologos SET activo = $2 WHERE id_odontologo = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DirectoryRepository) Patient(ctx context.Context, q db.Querier, id int64) (model.Patient, error) {
	var p model.Patient
	err := q.QueryRow(ctx, `
		SELECT id_paciente, id_usuario, nombre, celular
		FROM pacientes
		WHERE id_paciente = $1
	`, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Phone)
	if err != nil {
		return model.Patient{}, notFound(err)
	}
	return p, nil
}
