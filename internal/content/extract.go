package content

import "strings"

// stringField returns the first present key's string value.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapSlice(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// extractID finds the stable identifier for the item's kind. YAML content
// keeps it under commonfields.id; JSON content uses a top-level id.
func extractID(t ContentType, raw map[string]any) string {
	if cf, ok := raw["commonfields"].(map[string]any); ok {
		if id := stringField(cf, "id"); id != "" {
			return id
		}
	}
	return stringField(raw, "id")
}

func extractIntegration(raw map[string]any) *IntegrationDetail {
	detail := &IntegrationDetail{
		Category: stringField(raw, "category"),
	}
	script, _ := raw["script"].(map[string]any)
	if script != nil {
		detail.DockerImage = stringField(script, "dockerimage")
		detail.IsFetch = boolField(script, "isfetch")
		for _, cmd := range mapSlice(script["commands"]) {
			command := Command{
				Name:        stringField(cmd, "name"),
				Description: stringField(cmd, "description"),
				Deprecated:  boolField(cmd, "deprecated"),
			}
			for _, arg := range mapSlice(cmd["arguments"]) {
				command.Arguments = append(command.Arguments, Argument{
					Name:        stringField(arg, "name"),
					Description: stringField(arg, "description"),
					Required:    boolField(arg, "required"),
				})
			}
			detail.Commands = append(detail.Commands, command)
		}
	}
	return detail
}

func extractScript(raw map[string]any) *ScriptDetail {
	detail := &ScriptDetail{
		DockerImage: stringField(raw, "dockerimage"),
		ScriptType:  stringField(raw, "type"),
	}
	for _, arg := range mapSlice(raw["args"]) {
		detail.Arguments = append(detail.Arguments, Argument{
			Name:        stringField(arg, "name"),
			Description: stringField(arg, "description"),
			Required:    boolField(arg, "required"),
		})
	}
	return detail
}

func extractPlaybook(raw map[string]any) *PlaybookDetail {
	detail := &PlaybookDetail{}
	tasks, ok := raw["tasks"].(map[string]any)
	if !ok {
		return detail
	}
	for id, v := range tasks {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		task := Task{
			ID:              id,
			Type:            stringField(entry, "type"),
			SkipUnavailable: boolField(entry, "skipunavailable"),
		}
		if inner, ok := entry["task"].(map[string]any); ok {
			task.ScriptName = stringField(inner, "scriptName")
			task.ScriptID = stringField(inner, "script")
			task.PlaybookName = stringField(inner, "playbookName")
		}
		if next, ok := entry["nexttasks"].(map[string]any); ok {
			task.NextTasks = make(map[string][]string, len(next))
			for label, targets := range next {
				task.NextTasks[label] = stringSlice(targets)
			}
		}
		if task.Type == "condition" {
			for _, cond := range mapSlice(entry["conditions"]) {
				if label := stringField(cond, "label"); label != "" {
					task.ConditionLabels = append(task.ConditionLabels, label)
				}
			}
		}
		detail.Tasks = append(detail.Tasks, task)
	}
	return detail
}

func extractField(raw map[string]any) *FieldDetail {
	detail := &FieldDetail{
		CliName:         stringField(raw, "cliName"),
		FieldType:       stringField(raw, "type"),
		AssociatedTypes: stringSlice(raw["associatedTypes"]),
	}
	if g, ok := intField(raw, "group"); ok {
		detail.Group = g
	} else {
		detail.Group = -1
	}
	return detail
}

func extractMapper(raw map[string]any) *MapperDetail {
	detail := &MapperDetail{Type: stringField(raw, "type")}
	seenField := map[string]bool{}
	if mapping, ok := raw["mapping"].(map[string]any); ok {
		for typeID, v := range mapping {
			detail.IncidentTypeIDs = append(detail.IncidentTypeIDs, typeID)
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if internal, ok := entry["internalMapping"].(map[string]any); ok {
				for fieldName := range internal {
					cli := normalizeCliName(fieldName)
					if !seenField[cli] {
						seenField[cli] = true
						detail.FieldCliNames = append(detail.FieldCliNames, cli)
					}
				}
			}
		}
	}
	if defaultType := stringField(raw, "defaultIncidentType"); defaultType != "" {
		detail.IncidentTypeIDs = append(detail.IncidentTypeIDs, defaultType)
	}
	return detail
}

func extractLayout(raw map[string]any) *LayoutDetail {
	detail := &LayoutDetail{}
	seenField := map[string]bool{}
	addField := func(name string) {
		cli := normalizeCliName(name)
		if cli != "" && !seenField[cli] {
			seenField[cli] = true
			detail.FieldCliNames = append(detail.FieldCliNames, cli)
		}
	}
	for _, tabsKey := range []string{"detailsV2", "edit", "quickView", "indicatorsDetails"} {
		section, ok := raw[tabsKey].(map[string]any)
		if !ok {
			continue
		}
		for _, tab := range mapSlice(section["tabs"]) {
			for _, sec := range mapSlice(tab["sections"]) {
				for _, it := range mapSlice(sec["items"]) {
					if fieldID := stringField(it, "fieldId"); fieldID != "" {
						addField(fieldID)
					}
					if scriptID := stringField(it, "scriptId"); scriptID != "" {
						detail.ScriptIDs = append(detail.ScriptIDs, scriptID)
					}
				}
				if query := stringField(sec, "queryType"); query == "script" {
					if scriptID := stringField(sec, "query"); scriptID != "" {
						detail.ScriptIDs = append(detail.ScriptIDs, scriptID)
					}
				}
			}
		}
	}
	return detail
}

// normalizeCliName lowercases and strips the incident_/indicator_ prefixes the
// platform prepends to field ids in layouts and mappers.
func normalizeCliName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "incident_")
	s = strings.TrimPrefix(s, "indicator_")
	return s
}
