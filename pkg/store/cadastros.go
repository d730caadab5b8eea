package store

import (
	"context"

	"gorm.io/gorm"

	"vistorias/pkg/apperr"
	"vistorias/pkg/model"
)

type ClienteFiltro struct {
	Busca string
	Ativo *bool
}

func (s *Store) ListClientes(ctx context.Context, f ClienteFiltro, p Page) ([]model.Cliente, int64, error) {
	q := s.ctx(ctx).Model(&model.Cliente{})
	if f.Busca != "" {
		q = q.Where("LOWER(nome) LIKE ? OR cpf LIKE ? OR cnpj LIKE ?", like(f.Busca), like(f.Busca), like(f.Busca))
	}
	if f.Ativo != nil {
		q = q.Where("ativo = ?", *f.Ativo)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err, "cliente")
	}
	var out []model.Cliente
	err := p.apply(q.Order("nome")).Find(&out).Error
	return out, total, mapErr(err, "cliente")
}

func (s *Store) GetCliente(ctx context.Context, id uint) (model.Cliente, error) {
	var c model.Cliente
	err := s.ctx(ctx).First(&c, id).Error
	return c, mapErr(err, "cliente")
}

// GetClienteByDocumento finds a client by CPF or CNPJ digits.
func (s *Store) GetClienteByDocumento(ctx context.Context, doc string) (model.Cliente, error) {
	var c model.Cliente
	err := s.ctx(ctx).Where("cpf = ? OR cnpj = ?", doc, doc).First(&c).Error
	return c, mapErr(err, "cliente")
}

func (s *Store) CreateCliente(ctx context.Context, c *model.Cliente) error {
	return mapErr(s.ctx(ctx).Create(c).Error, "cliente")
}

func (s *Store) UpdateCliente(ctx context.Context, c *model.Cliente) error {
	if _, err := s.GetCliente(ctx, c.ID); err != nil {
		return err
	}
	return mapErr(s.ctx(ctx).Select("*").Omit("created_at").Save(c).Error, "cliente")
}

func (s *Store) DeleteCliente(ctx context.Context, id uint) error {
	var refs int64
	if err := s.ctx(ctx).Model(&model.Embarcacao{}).Where("cliente_id = ?", id).Count(&refs).Error; err != nil {
		return mapErr(err, "cliente")
	}
	if refs > 0 {
		return apperr.Conflict("cliente possui embarcações cadastradas")
	}
	return deleteByID(s.ctx(ctx), &model.Cliente{}, id, "cliente")
}

func (s *Store) ListSeguradoras(ctx context.Context, somenteAtivas bool) ([]model.Seguradora, error) {
	q := s.ctx(ctx).Preload("TiposPermitidos").Order("nome")
	if somenteAtivas {
		q = q.Where("ativo = ?", true)
	}
	var out []model.Seguradora
	err := q.Find(&out).Error
	return out, mapErr(err, "seguradora")
}

func (s *Store) GetSeguradora(ctx context.Context, id uint) (model.Seguradora, error) {
	var sg model.Seguradora
	err := s.ctx(ctx).Preload("TiposPermitidos").First(&sg, id).Error
	return sg, mapErr(err, "seguradora")
}

func (s *Store) CreateSeguradora(ctx context.Context, sg *model.Seguradora) error {
	return mapErr(s.ctx(ctx).Create(sg).Error, "seguradora")
}

// UpdateSeguradora saves the insurer and replaces its allowed vessel types.
func (s *Store) UpdateSeguradora(ctx context.Context, sg *model.Seguradora) error {
	err := s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Seguradora
		if err := tx.First(&cur, sg.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&cur).Updates(map[string]interface{}{"nome": sg.Nome, "ativo": sg.Ativo}).Error; err != nil {
			return err
		}
		if err := tx.Where("seguradora_id = ?", sg.ID).Delete(&model.SeguradoraTipoEmbarcacao{}).Error; err != nil {
			return err
		}
		for i := range sg.TiposPermitidos {
			sg.TiposPermitidos[i].ID = 0
			sg.TiposPermitidos[i].SeguradoraID = sg.ID
		}
		if len(sg.TiposPermitidos) > 0 {
			if err := tx.Create(&sg.TiposPermitidos).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return mapErr(err, "seguradora")
}

func (s *Store) DeleteSeguradora(ctx context.Context, id uint) error {
	var refs int64
	if err := s.ctx(ctx).Model(&model.Embarcacao{}).Where("seguradora_id = ?", id).Count(&refs).Error; err != nil {
		return mapErr(err, "seguradora")
	}
	if refs > 0 {
		return apperr.Conflict("seguradora vinculada a embarcações")
	}
	return deleteByID(s.ctx(ctx), &model.Seguradora{}, id, "seguradora")
}

type EmbarcacaoFiltro struct {
	ClienteID    uint
	SeguradoraID uint
	Tipo         string
	Busca        string
}

func (s *Store) ListEmbarcacoes(ctx context.Context, f EmbarcacaoFiltro, p Page) ([]model.Embarcacao, int64, error) {
	q := s.ctx(ctx).Model(&model.Embarcacao{})
	if f.ClienteID != 0 {
		q = q.Where("cliente_id = ?", f.ClienteID)
	}
	if f.SeguradoraID != 0 {
		q = q.Where("seguradora_id = ?", f.SeguradoraID)
	}
	if f.Tipo != "" {
		q = q.Where("tipo_embarcacao = ?", f.Tipo)
	}
	if f.Busca != "" {
		q = q.Where("LOWER(nome) LIKE ? OR LOWER(nr_inscricao_barco) LIKE ?", like(f.Busca), like(f.Busca))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err, "embarcação")
	}
	var out []model.Embarcacao
	err := p.apply(q.Preload("Cliente").Preload("Seguradora").Order("nome")).Find(&out).Error
	return out, total, mapErr(err, "embarcação")
}

func (s *Store) GetEmbarcacao(ctx context.Context, id uint) (model.Embarcacao, error) {
	var e model.Embarcacao
	err := s.ctx(ctx).Preload("Cliente").Preload("Seguradora.TiposPermitidos").First(&e, id).Error
	return e, mapErr(err, "embarcação")
}

func (s *Store) CreateEmbarcacao(ctx context.Context, e *model.Embarcacao) error {
	return s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		return createEmbarcacao(tx, e)
	})
}

func createEmbarcacao(tx *gorm.DB, e *model.Embarcacao) error {
	if err := checkEmbarcacaoRefs(tx, e); err != nil {
		return err
	}
	return mapErr(tx.Omit("Cliente", "Seguradora").Create(e).Error, "embarcação")
}

func (s *Store) UpdateEmbarcacao(ctx context.Context, e *model.Embarcacao) error {
	return s.ctx(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.Embarcacao
		if err := tx.First(&cur, e.ID).Error; err != nil {
			return mapErr(err, "embarcação")
		}
		if err := checkEmbarcacaoRefs(tx, e); err != nil {
			return err
		}
		e.CreatedAt = cur.CreatedAt
		return mapErr(tx.Omit("Cliente", "Seguradora").Save(e).Error, "embarcação")
	})
}

// checkEmbarcacaoRefs resolves the client and insurer and enforces that the
// insurer covers the vessel type.
func checkEmbarcacaoRefs(tx *gorm.DB, e *model.Embarcacao) error {
	if e.ClienteID != nil {
		var c model.Cliente
		if err := tx.First(&c, *e.ClienteID).Error; err != nil {
			return mapErr(err, "cliente")
		}
	}
	if e.SeguradoraID != nil {
		var sg model.Seguradora
		if err := tx.Preload("TiposPermitidos").First(&sg, *e.SeguradoraID).Error; err != nil {
			return mapErr(err, "seguradora")
		}
		if !sg.Permite(e.TipoEmbarcacao) {
			return apperr.Invalid("seguradora " + sg.Nome + " não aceita embarcações do tipo " + e.TipoEmbarcacao)
		}
	}
	return nil
}

func (s *Store) DeleteEmbarcacao(ctx context.Context, id uint) error {
	var refs int64
	if err := s.ctx(ctx).Model(&model.Vistoria{}).Where("embarcacao_id = ?", id).Count(&refs).Error; err != nil {
		return mapErr(err, "embarcação")
	}
	if refs > 0 {
		return apperr.Conflict("embarcação possui vistorias")
	}
	return deleteByID(s.ctx(ctx), &model.Embarcacao{}, id, "embarcação")
}

func (s *Store) ListLocais(ctx context.Context, tipo string, p Page) ([]model.Local, int64, error) {
	q := s.ctx(ctx).Model(&model.Local{})
	if tipo != "" {
		q = q.Where("tipo = ?", tipo)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err, "local")
	}
	var out []model.Local
	err := p.apply(q.Order("nome_local")).Find(&out).Error
	return out, total, mapErr(err, "local")
}

func (s *Store) GetLocal(ctx context.Context, id uint) (model.Local, error) {
	var l model.Local
	err := s.ctx(ctx).First(&l, id).Error
	return l, mapErr(err, "local")
}

func (s *Store) CreateLocal(ctx context.Context, l *model.Local) error {
	return mapErr(s.ctx(ctx).Create(l).Error, "local")
}

func (s *Store) UpdateLocal(ctx context.Context, l *model.Local) error {
	if _, err := s.GetLocal(ctx, l.ID); err != nil {
		return err
	}
	return mapErr(s.ctx(ctx).Select("*").Omit("created_at").Save(l).Error, "local")
}

func (s *Store) DeleteLocal(ctx context.Context, id uint) error {
	var refs int64
	if err := s.ctx(ctx).Model(&model.Vistoria{}).Where("local_id = ?", id).Count(&refs).Error; err != nil {
		return mapErr(err, "local")
	}
	if refs > 0 {
		return apperr.Conflict("local vinculado a vistorias")
	}
	return deleteByID(s.ctx(ctx), &model.Local{}, id, "local")
}

func deleteByID(db *gorm.DB, v interface{}, id uint, what string) error {
	res := db.Delete(v, id)
	if res.Error != nil {
		return mapErr(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(what)
	}
	return nil
}
