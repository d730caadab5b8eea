package store

import (
	"context"

	"gorm.io/gorm"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
)

func (s *Store) CountUsuarios(ctx context.Context) (int64, error) {
	var n int64
	err := s.ctx(ctx).Model(&model.Usuario{}).Count(&n).Error
	return n, mapErr(err, "usuário")
}

// ListUsuarios lists users; nivel 0 means every level.
func (s *Store) ListUsuarios(ctx context.Context, nivel uint, busca string, p Page) ([]model.Usuario, int64, error) {
	q := s.ctx(ctx).Model(&model.Usuario{})
	if nivel != 0 {
		q = q.Where("nivel_acesso_id = ?", nivel)
	}
	if busca != "" {
		q = q.Where("LOWER(nome) LIKE ? OR LOWER(email) LIKE ?", like(busca), like(busca))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err, "usuário")
	}
	var out []model.Usuario
	err := p.apply(q.Preload("NivelAcesso").Order("nome")).Find(&out).Error
	return out, total, mapErr(err, "usuário")
}

func (s *Store) GetUsuario(ctx context.Context, id uint) (model.Usuario, error) {
	var u model.Usuario
	err := s.ctx(ctx).Preload("NivelAcesso").First(&u, id).Error
	return u, mapErr(err, "usuário")
}

func (s *Store) GetUsuarioByEmail(ctx context.Context, email string) (model.Usuario, error) {
	var u model.Usuario
	err := s.ctx(ctx).Where("email = ?", email).First(&u).Error
	return u, mapErr(err, "usuário")
}

// CriarPrimeiroUsuario creates u only while the table is empty. Touching the
// admin level row first serializes concurrent callers on MySQL.
func (s *Store) CriarPrimeiroUsuario(ctx context.Context, u *model.Usuario) error {
	return s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.NivelAcesso{}).Where("id = ?", model.NivelAdmin).
			Update("nome", gorm.Expr("nome")).Error; err != nil {
			return mapErr(err, "nível de acesso")
		}
		var n int64
		if err := tx.Model(&model.Usuario{}).Count(&n).Error; err != nil {
			return mapErr(err, "usuário")
		}
		if n > 0 {
			return apperr.New(apperr.CodeForbidden, "cadastro fechado")
		}
		return mapErr(tx.Create(u).Error, "usuário")
	})
}

func (s *Store) CreateUsuario(ctx context.Context, u *model.Usuario) error {
	return mapErr(s.ctx(ctx).Create(u).Error, "usuário")
}

// UpdateUsuario saves profile fields; password and active flag have their own methods.
func (s *Store) UpdateUsuario(ctx context.Context, u *model.Usuario) error {
	res := s.ctx(ctx).Model(&model.Usuario{ID: u.ID}).
		Select("nome", "email", "cpf", "telefone", "nivel_acesso_id").
		Updates(u)
	if res.Error != nil {
		return mapErr(res.Error, "usuário")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("usuário")
	}
	return nil
}

func (s *Store) SetUsuarioAtivo(ctx context.Context, id uint, ativo bool) error {
	res := s.ctx(ctx).Model(&model.Usuario{ID: id}).Update("ativo", ativo)
	if res.Error != nil {
		return mapErr(res.Error, "usuário")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("usuário")
	}
	return nil
}

func (s *Store) UpdateSenha(ctx context.Context, id uint, hash string, deveAtualizar bool) error {
	res := s.ctx(ctx).Model(&model.Usuario{ID: id}).Updates(map[string]interface{}{
		"senha_hash":           hash,
		"deve_atualizar_senha": deveAtualizar,
	})
	if res.Error != nil {
		return mapErr(res.Error, "usuário")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("usuário")
	}
	return nil
}

// DeleteUsuario refuses users referenced by vistorias or payment batches;
// those are deactivated instead.
func (s *Store) DeleteUsuario(ctx context.Context, id uint) error {
	var refs int64
	if err := s.ctx(ctx).Model(&model.Vistoria{}).
		Where("vistoriador_id = ? OR administrador_id = ?", id, id).Count(&refs).Error; err != nil {
		return mapErr(err, "usuário")
	}
	if refs == 0 {
		if err := s.ctx(ctx).Model(&model.LotePagamento{}).Where("vistoriador_id = ?", id).Count(&refs).Error; err != nil {
			return mapErr(err, "usuário")
		}
	}
	if refs > 0 {
		return apperr.Conflict("usuário possui vistorias ou pagamentos; desative-o em vez de excluir")
	}
	res := s.ctx(ctx).Delete(&model.Usuario{}, id)
	if res.Error != nil {
		return mapErr(res.Error, "usuário")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("usuário")
	}
	return nil
}
