package db

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vistorias/pkg/auth"
	"vistorias/pkg/checklist"
	"vistorias/pkg/model"
)

type SeedOptions struct {
	AdminNome  string
	AdminEmail string
	// AdminSenha is generated when empty and returned in SeedResult.
	AdminSenha string
}

type SeedResult struct {
	AdminCriado    bool
	SenhaGerada    string
	TemplatesNovos int
	TiposFotoNovos int
}

// Seed inserts reference data and a bootstrap admin. Running it twice is a no-op.
func Seed(db *gorm.DB, opts SeedOptions) (SeedResult, error) {
	var res SeedResult
	err := db.Transaction(func(tx *gorm.DB) error {
		niveis := []model.NivelAcesso{
			{ID: model.NivelAdmin, Nome: "ADMIN", Descricao: "Administrador"},
			{ID: model.NivelVistoriador, Nome: "VISTORIADOR", Descricao: "Vistoriador de campo"},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&niveis).Error; err != nil {
			return fmt.Errorf("seed niveis: %w", err)
		}

		for _, tf := range checklist.DefaultTiposFoto() {
			var existing model.TipoFotoChecklist
			err := tx.Where("codigo = ?", tf.Codigo).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			tf := tf
			if err := tx.Create(&tf).Error; err != nil {
				return fmt.Errorf("seed tipo foto %s: %w", tf.Codigo, err)
			}
			res.TiposFotoNovos++
		}

		for _, tpl := range checklist.DefaultTemplates() {
			var count int64
			if err := tx.Model(&model.ChecklistTemplate{}).Where("tipo_embarcacao = ?", tpl.TipoEmbarcacao).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			tpl := tpl
			if err := tx.Create(&tpl).Error; err != nil {
				return fmt.Errorf("seed template %s: %w", tpl.TipoEmbarcacao, err)
			}
			res.TemplatesNovos++
		}

		var users int64
		if err := tx.Model(&model.Usuario{}).Count(&users).Error; err != nil {
			return err
		}
		if users > 0 || opts.AdminEmail == "" {
			return nil
		}
		senha := opts.AdminSenha
		if senha == "" {
			senha = randomPassword()
			res.SenhaGerada = senha
		}
		hash, err := auth.HashPassword(senha)
		if err != nil {
			return err
		}
		nome := opts.AdminNome
		if nome == "" {
			nome = "Administrador"
		}
		admin := model.Usuario{
			Nome:               nome,
			Email:              opts.AdminEmail,
			SenhaHash:          hash,
			NivelAcessoID:      model.NivelAdmin,
			Ativo:              true,
			DeveAtualizarSenha: opts.AdminSenha == "",
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		res.AdminCriado = true
		return nil
	})
	return res, err
}

func randomPassword() string {
	b := make([]byte, 9)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
