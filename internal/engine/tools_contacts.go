package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/castrolabs/osbot/internal/contacts"
)

func (t *Toolset) registerContactTools(r *Registry) {
	r.register("salvar_contato",
		"Salva ou atualiza um contato na agenda do usuário.",
		objectSchema(map[string]any{
			"nome":        strProp("Nome do contato"),
			"telefone":    strProp("Telefone do contato"),
			"email":       strProp("E-mail do contato"),
			"observacoes": strProp("Observações sobre o contato"),
			"favorito":    boolProp("Marca o contato como favorito"),
		}, "nome", "telefone"),
		t.handleSaveContact, presentAny(presentContact))

	r.register("buscar_contato_salvo",
		"Busca contatos salvos pelo nome ou telefone.",
		objectSchema(map[string]any{
			"busca": strProp("Nome ou telefone a buscar"),
		}, "busca"),
		t.handleSearchContacts, presentAny(presentContactList))

	r.register("listar_contatos",
		"Lista os contatos salvos, favoritos primeiro.",
		objectSchema(map[string]any{
			"limite": intProp("Máximo de contatos a retornar"),
		}),
		t.handleListContacts, presentAny(presentContactList))

	r.register("excluir_contato",
		"Remove um contato da agenda pelo telefone.",
		objectSchema(map[string]any{
			"telefone": strProp("Telefone do contato a remover"),
		}, "telefone"),
		t.handleDeleteContact, presentAny(func(phone string) string {
			return "🗑️ Contato " + phone + " removido da agenda."
		}))
}

type saveContactArgs struct {
	Nome        string `json:"nome"`
	Telefone    string `json:"telefone"`
	Email       string `json:"email"`
	Observacoes string `json:"observacoes"`
	Favorito    bool   `json:"favorito"`
}

func (t *Toolset) handleSaveContact(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args saveContactArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.Nome) == "" {
		return nil, Validation("Qual o nome do contato?")
	}
	contact, err := t.Contacts.Upsert(ctx, tc.UserID, &contacts.UpsertInput{
		Phone:    args.Telefone,
		Name:     args.Nome,
		Email:    args.Email,
		Notes:    args.Observacoes,
		Favorite: args.Favorito,
	})
	if err != nil {
		if errors.Is(err, contacts.ErrPhoneRequired) {
			return nil, Validation("Preciso de um telefone válido para salvar o contato.")
		}
		return nil, Persistence(err)
	}
	return contact, nil
}

type searchContactsArgs struct {
	Busca string `json:"busca"`
}

func (t *Toolset) handleSearchContacts(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args searchContactsArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.Busca) == "" {
		return nil, Validation("Quem você está procurando? Me diga o nome ou telefone.")
	}
	list, err := t.Contacts.Search(ctx, tc.UserID, args.Busca, 20)
	if err != nil {
		return nil, Persistence(err)
	}
	return list, nil
}

type listContactsArgs struct {
	Limite int `json:"limite"`
}

func (t *Toolset) handleListContacts(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args listContactsArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	limit := args.Limite
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	list, err := t.Contacts.List(ctx, tc.UserID, limit)
	if err != nil {
		return nil, Persistence(err)
	}
	return list, nil
}

type deleteContactArgs struct {
	Telefone string `json:"telefone"`
}

func (t *Toolset) handleDeleteContact(ctx context.Context, tc ToolContext, raw json.RawMessage) (any, *OperationError) {
	var args deleteContactArgs
	if opErr := parseArgs(raw, &args); opErr != nil {
		return nil, opErr
	}
	if strings.TrimSpace(args.Telefone) == "" {
		return nil, Validation("Qual o telefone do contato que devo remover?")
	}
	if err := t.Contacts.Delete(ctx, tc.UserID, args.Telefone); err != nil {
		if errors.Is(err, contacts.ErrContactNotFound) {
			return nil, NotFound("Não achei esse contato na sua agenda.")
		}
		return nil, Persistence(err)
	}
	return args.Telefone, nil
}
