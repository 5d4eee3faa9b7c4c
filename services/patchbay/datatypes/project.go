// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// SaveProjectRequest stores the live graph under a new project name.
type SaveProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

func (r *SaveProjectRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateProjectRequest overwrites an existing project with the live graph,
// optionally renaming it.
type UpdateProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

func (r *UpdateProjectRequest) Validate() error {
	return validate.Struct(r)
}
