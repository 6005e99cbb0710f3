package knowledge

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Requirements lists the equipment a specialty needs, split by how hard the
// absence of an item undermines the claimed capability.
type Requirements struct {
	Critical    []string `yaml:"critical" json:"critical"`
	Required    []string `yaml:"required" json:"required"`
	Recommended []string `yaml:"recommended" json:"recommended"`
}

// Catalog is the static medical vocabulary: specialty equipment
// requirements, procedure aliases, equipment synonyms, and specialty
// trigger keywords. Loaded once and read-only afterwards.
type Catalog struct {
	Specialties map[string]Requirements `yaml:"specialties" json:"specialties"`
	Procedures  map[string]string       `yaml:"procedures" json:"procedures"`
	Synonyms    map[string]string       `yaml:"synonyms" json:"synonyms"`
	Keywords    map[string][]string     `yaml:"keywords" json:"keywords"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := ioutil.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Specialties) == 0 {
		return Catalog{}, fmt.Errorf("knowledge catalog has no specialties")
	}
	return cat, nil
}

func DefaultCatalog() Catalog {
	return Catalog{
		Specialties: map[string]Requirements{
			"neurosurgery": {
				Critical:    []string{"ICU", "operating room", "operating microscope", "anesthesia machine"},
				Required:    []string{"CT scan", "surgical instruments", "autoclave", "ventilator"},
				Recommended: []string{"MRI", "neuromonitoring equipment"},
			},
			"cardiovascular surgery": {
				Critical:    []string{"ICU", "operating room", "cardiopulmonary bypass machine", "anesthesia machine"},
				Required:    []string{"ECG", "defibrillator", "surgical instruments", "blood bank"},
				Recommended: []string{"cardiac catheterization lab", "ECMO"},
			},
			"cataract surgery": {
				Critical:    []string{"operating microscope", "phacoemulsification machine", "operating room"},
				Required:    []string{"surgical instruments", "autoclave", "slit lamp"},
				Recommended: []string{"optical coherence tomography", "IOL master"},
			},
			"dialysis": {
				Critical:    []string{"dialysis machine", "water purification system", "dialysis chair"},
				Required:    []string{"vascular access supplies", "emergency equipment"},
				Recommended: []string{"portable dialysis machine"},
			},
			"cardiology": {
				Critical:    []string{"ECG machine", "defibrillator"},
				Required:    []string{"echocardiography", "cardiac monitor", "stress test equipment"},
				Recommended: []string{"holter monitor", "cardiac catheterization lab"},
			},
			"ophthalmology": {
				Critical:    []string{"slit lamp", "ophthalmoscope"},
				Required:    []string{"tonometer", "refraction equipment"},
				Recommended: []string{"optical coherence tomography", "fundus camera"},
			},
			"surgery": {
				Critical:    []string{"operating room", "anesthesia machine", "surgical instruments"},
				Required:    []string{"autoclave", "surgical lights", "operating table"},
				Recommended: []string{"laparoscopic equipment", "surgical microscope"},
			},
			"orthopedic surgery": {
				Critical:    []string{"operating room", "C-arm fluoroscopy", "surgical instruments"},
				Required:    []string{"orthopedic implants", "power tools", "casting equipment"},
				Recommended: []string{"arthroscopy equipment"},
			},
			"maternity": {
				Critical:    []string{"delivery room", "fetal monitor", "resuscitation equipment"},
				Required:    []string{"ultrasound", "blood bank access", "neonatal care equipment"},
				Recommended: []string{"operating room for C-sections", "NICU"},
			},
			"intensive care": {
				Critical:    []string{"ICU beds", "ventilator", "cardiac monitor", "defibrillator"},
				Required:    []string{"infusion pumps", "emergency medications", "laboratory access"},
				Recommended: []string{"dialysis capability", "advanced imaging"},
			},
			"hospitalist": {
				Critical:    []string{"hospital beds", "monitoring equipment", "emergency cart"},
				Required:    []string{"laboratory access", "imaging access", "pharmacy"},
				Recommended: []string{"electronic health records", "consultation services"},
			},
			"emergency medicine": {
				Critical:    []string{"emergency department", "defibrillator", "crash cart", "oxygen supply"},
				Required:    []string{"X-ray", "CT scan", "laboratory", "pharmacy"},
				Recommended: []string{"trauma bay", "helicopter pad"},
			},
		},
		Procedures: map[string]string{
			"cataract surgery":    "ophthalmology",
			"glaucoma surgery":    "ophthalmology",
			"retinal surgery":     "ophthalmology",
			"lasik":               "ophthalmology",
			"coronary bypass":     "cardiovascular surgery",
			"valve replacement":   "cardiovascular surgery",
			"angioplasty":         "cardiology",
			"hemodialysis":        "dialysis",
			"peritoneal dialysis": "dialysis",
			"knee replacement":    "orthopedic surgery",
			"hip replacement":     "orthopedic surgery",
			"cesarean section":    "maternity",
			"normal delivery":     "maternity",
			"brain surgery":       "neurosurgery",
			"spinal surgery":      "neurosurgery",
		},
		Synonyms: map[string]string{
			"operating theatre":          "operating room",
			"surgery room":               "operating room",
			"intensive care":             "ICU",
			"intensive care unit":        "ICU",
			"critical care":              "ICU",
			"icu bed":                    "ICU",
			"anaesthesia machine":        "anesthesia machine",
			"hemodialysis machine":       "dialysis machine",
			"dialysis equipment":         "dialysis machine",
			"ct scanner":                 "CT scan",
			"cat scan":                   "CT scan",
			"computed tomography":        "CT scan",
			"mri scanner":                "MRI",
			"magnetic resonance imaging": "MRI",
		},
		Keywords: map[string][]string{
			"cardiology":         {"heart", "cardiac", "cardiovascular", "coronary"},
			"neurosurgery":       {"brain", "neuro", "spine", "spinal", "neurological"},
			"ophthalmology":      {"eye", "vision", "ophthalmic", "ocular", "retinal"},
			"orthopedic surgery": {"bone", "joint", "fracture", "orthopedic", "musculoskeletal"},
			"maternity":          {"pregnancy", "delivery", "obstetric", "maternal", "prenatal"},
			"dialysis":           {"kidney", "renal", "nephrology", "dialysis"},
			"emergency medicine": {"trauma", "emergency", "urgent"},
			"intensive care":     {"icu", "critical care"},
			"hospitalist":        {"inpatient", "hospital medicine"},
		},
	}
}
