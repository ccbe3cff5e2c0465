// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modify

import "github.com/AleutianAI/Stentelligence/services/stencil/model"

// ExtractFiducials turns every selected live shape into a fiducial.
//
// The selected shape is retired and a deselected copy flagged IsFiducial
// is appended with the id "<id>-fid". The copies are returned as well.
// A reset of the source retires its copy.
func ExtractFiducials(ds *model.Dataset) ([]model.Shape, error) {
	if ds == nil {
		return nil, model.ErrEmptyDataset
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	var fids []model.Shape
	n := len(ds.Shapes)
	for i := 0; i < n; i++ {
		s := &ds.Shapes[i]
		if !s.Selected || !s.Live() || s.IsFiducial {
			continue
		}
		fid := *s
		fid.ID = s.ID + "-fid"
		fid.Selected = false
		fid.IsFiducial = true
		fid.FiducialOf = s.ID
		s.Deleted = true
		fids = append(fids, fid)
	}
	ds.Shapes = append(ds.Shapes, fids...)
	return fids, nil
}
