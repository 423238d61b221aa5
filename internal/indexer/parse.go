package indexer

import (
	"fmt"
	"strings"

	"airdropScope/internal/chain"
	"airdropScope/internal/config"
	"airdropScope/internal/model"
)

// BuildSourceSpecs validates configured sources and turns them into specs.
// Source and filter names must be unique since reports key on them.
func BuildSourceSpecs(sources []config.SourceConfig) ([]SourceSpec, error) {
	specs := make([]SourceSpec, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate source name: %s", name)
		}
		seen[name] = struct{}{}

		address, err := model.ParseFelt(src.Address)
		if err != nil {
			return nil, fmt.Errorf("source %s: invalid address: %w", name, err)
		}
		if src.EndBlock == 0 {
			return nil, fmt.Errorf("source %s: end-block is required", name)
		}
		if src.EndBlock < src.StartBlock {
			return nil, fmt.Errorf("source %s: end-block must be >= start-block", name)
		}
		if len(src.Filters) == 0 {
			return nil, fmt.Errorf("source %s: at least one filter is required", name)
		}

		filters := make([]model.EventFilter, 0, len(src.Filters))
		filterNames := make(map[string]struct{}, len(src.Filters))
		for j, fc := range src.Filters {
			filter, err := ParseFilter(fc)
			if err != nil {
				return nil, fmt.Errorf("source %s filter %d: %w", name, j, err)
			}
			if filter.Name == "" {
				filter.Name = fmt.Sprintf("filter-%d", j)
			}
			if _, dup := filterNames[filter.Name]; dup {
				return nil, fmt.Errorf("source %s: duplicate filter name: %s", name, filter.Name)
			}
			filterNames[filter.Name] = struct{}{}
			filters = append(filters, filter)
		}

		specs = append(specs, SourceSpec{
			Source: model.EventSource{
				Name:       name,
				Address:    address,
				StartBlock: src.StartBlock,
				EndBlock:   src.EndBlock,
			},
			Filters: filters,
		})
	}
	return specs, nil
}

// ParseFilter builds a filter whose first key position accepts the event
// selector and any extra topic values.
func ParseFilter(fc config.FilterConfig) (model.EventFilter, error) {
	if fc.SignatureName != "" && fc.SignatureHash != "" {
		return model.EventFilter{}, fmt.Errorf("signature-name and signature-hash are mutually exclusive")
	}
	if fc.ExtractIndex < 0 {
		return model.EventFilter{}, fmt.Errorf("extract-index must be >= 0")
	}

	position := make([]model.Felt, 0, 1+len(fc.TopicValues))
	switch {
	case fc.SignatureName != "":
		position = append(position, chain.Selector(strings.TrimSpace(fc.SignatureName)))
	case fc.SignatureHash != "":
		sig, err := model.ParseFelt(fc.SignatureHash)
		if err != nil {
			return model.EventFilter{}, fmt.Errorf("invalid signature-hash: %w", err)
		}
		position = append(position, sig)
	}
	for _, topic := range fc.TopicValues {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		value, err := model.ParseFelt(topic)
		if err != nil {
			return model.EventFilter{}, fmt.Errorf("invalid topic value: %w", err)
		}
		position = append(position, value)
	}

	filter := model.EventFilter{
		Name:         strings.TrimSpace(fc.Name),
		ExtractIndex: fc.ExtractIndex,
	}
	if filter.Name == "" {
		filter.Name = strings.TrimSpace(fc.SignatureName)
	}
	if len(position) > 0 {
		filter.Keys = [][]model.Felt{position}
	}
	if fc.Match != nil {
		if fc.Match.Index < 0 {
			return model.EventFilter{}, fmt.Errorf("match index must be >= 0")
		}
		value, err := model.ParseFelt(fc.Match.Value)
		if err != nil {
			return model.EventFilter{}, fmt.Errorf("invalid match value: %w", err)
		}
		filter.Match = &model.DataMatch{Index: fc.Match.Index, Value: value}
	}
	return filter, nil
}
